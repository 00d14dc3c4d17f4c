// Package domain holds the typed entities stored in the two bot
// tables and their codecs to and from schema-less store records.
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/storage"
)

// Table and field names of the persisted layout.
const (
	TableShares = "shares"
	TableUsers  = "users"

	FieldTicker  = "ticker"
	FieldUserID  = "user_id"
	FieldTickers = "tickers"
	FieldAmount  = "amount"

	fieldName           = "name"
	fieldPrice          = "price"
	fieldLotSize        = "lot_size"
	FieldLotPrice       = "lot_price"
	FieldLotPriceChange = "lot_price_change"
)

// Share is one exchange-traded instrument as of the latest refresh.
type Share struct {
	Ticker         string
	Name           string
	Price          decimal.Decimal
	LotSize        int64
	LotPrice       decimal.Decimal
	LotPriceChange decimal.Decimal
}

// Record converts the share into a store document keyed by ticker.
func (s Share) Record() storage.Record {
	return storage.Record{
		FieldTicker:         s.Ticker,
		fieldName:           s.Name,
		fieldPrice:          s.Price,
		fieldLotSize:        s.LotSize,
		FieldLotPrice:       s.LotPrice,
		FieldLotPriceChange: s.LotPriceChange,
	}
}

// ShareFromRecord decodes a store document into a Share.
func ShareFromRecord(rec storage.Record) (Share, error) {
	ticker, err := StringField(rec, FieldTicker)
	if err != nil {
		return Share{}, err
	}
	name, err := StringField(rec, fieldName)
	if err != nil {
		return Share{}, err
	}
	price, err := DecimalField(rec, fieldPrice)
	if err != nil {
		return Share{}, err
	}
	lotSize, err := IntField(rec, fieldLotSize)
	if err != nil {
		return Share{}, err
	}
	lotPrice, err := DecimalField(rec, FieldLotPrice)
	if err != nil {
		return Share{}, err
	}
	change, err := DecimalField(rec, FieldLotPriceChange)
	if err != nil {
		return Share{}, err
	}
	return Share{
		Ticker:         ticker,
		Name:           name,
		Price:          price,
		LotSize:        lotSize,
		LotPrice:       lotPrice,
		LotPriceChange: change,
	}, nil
}

// StringField reads a required string field from a record.
func StringField(rec storage.Record, field string) (string, error) {
	v, ok := rec[field]
	if !ok {
		return "", fmt.Errorf("record field %s: missing", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record field %s: %T is not a string", field, v)
	}
	return s, nil
}

// IntField reads a required integer field from a record, tolerating
// the numeric types a JSON round-trip produces.
func IntField(rec storage.Record, field string) (int64, error) {
	v, ok := rec[field]
	if !ok {
		return 0, fmt.Errorf("record field %s: missing", field)
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case decimal.Decimal:
		return x.IntPart(), nil
	default:
		return 0, fmt.Errorf("record field %s: %T is not an integer", field, v)
	}
}

// DecimalField reads a required decimal field from a record. Decimals
// are persisted as JSON strings to keep exact precision.
func DecimalField(rec storage.Record, field string) (decimal.Decimal, error) {
	v, ok := rec[field]
	if !ok {
		return decimal.Zero, fmt.Errorf("record field %s: missing", field)
	}
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	default:
		return decimal.Zero, fmt.Errorf("record field %s: %T is not a decimal", field, v)
	}
}
