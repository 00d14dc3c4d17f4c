package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/storage"
)

// Holding is the user's recorded lot amount for one ticker.
type Holding struct {
	Amount int64
}

// Holdings maps uppercase tickers to the user's holdings.
type Holdings map[string]Holding

// Tickers returns the held tickers in sorted order.
func (h Holdings) Tickers() []string {
	out := make([]string, 0, len(h))
	for t := range h {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HoldingsFromRecord decodes the tickers field of a user document.
// An absent field decodes as empty holdings.
func HoldingsFromRecord(rec storage.Record) (Holdings, error) {
	raw, ok := rec[FieldTickers]
	if !ok || raw == nil {
		return Holdings{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record field %s: %T is not a map", FieldTickers, raw)
	}
	out := make(Holdings, len(m))
	for ticker, v := range m {
		entry, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("holding %s: %T is not a map", ticker, v)
		}
		amount, err := IntField(entry, FieldAmount)
		if err != nil {
			return nil, fmt.Errorf("holding %s: %w", ticker, err)
		}
		out[ticker] = Holding{Amount: amount}
	}
	return out, nil
}

// Position joins one holding with its share row for rendering and
// notification math.
type Position struct {
	Ticker         string
	Amount         int64
	LotPrice       decimal.Decimal
	Capitalization decimal.Decimal
	// Change is the lot-value delta of this position since the previous
	// tick, rounded to whole units.
	Change decimal.Decimal
}
