package domain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/storage"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

// The codec must survive a trip through the store, which normalizes
// decimals to JSON strings and integers to float64.
func TestShareRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	if err := store.EnsureTable(ctx, TableShares); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	in := Share{
		Ticker:         "SBER",
		Name:           "Sberbank",
		Price:          mustDecimal(t, "310.57"),
		LotSize:        10,
		LotPrice:       mustDecimal(t, "3106"),
		LotPriceChange: mustDecimal(t, "-12.4"),
	}
	if err := store.Put(ctx, TableShares, "SBER", in.Record()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := store.Get(ctx, TableShares, "SBER")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	out, err := ShareFromRecord(rec)
	if err != nil {
		t.Fatalf("ShareFromRecord: %v", err)
	}
	if out.Ticker != in.Ticker || out.Name != in.Name || out.LotSize != in.LotSize {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
	if !out.Price.Equal(in.Price) {
		t.Errorf("Price = %s, want %s", out.Price, in.Price)
	}
	if !out.LotPriceChange.Equal(in.LotPriceChange) {
		t.Errorf("LotPriceChange = %s, want %s", out.LotPriceChange, in.LotPriceChange)
	}
}

func TestShareFromRecordMissingField(t *testing.T) {
	_, err := ShareFromRecord(storage.Record{FieldTicker: "SBER"})
	if err == nil {
		t.Fatal("decoding incomplete record succeeded")
	}
}

func TestHoldingsFromRecord(t *testing.T) {
	rec := storage.Record{
		FieldTickers: map[string]any{
			"SBER": map[string]any{"amount": float64(3)},
			"GAZP": map[string]any{"amount": float64(1)},
		},
	}
	holdings, err := HoldingsFromRecord(rec)
	if err != nil {
		t.Fatalf("HoldingsFromRecord: %v", err)
	}
	if holdings["SBER"].Amount != 3 || holdings["GAZP"].Amount != 1 {
		t.Errorf("holdings = %v", holdings)
	}

	tickers := holdings.Tickers()
	if len(tickers) != 2 || tickers[0] != "GAZP" || tickers[1] != "SBER" {
		t.Errorf("Tickers = %v, want sorted [GAZP SBER]", tickers)
	}
}

func TestHoldingsFromRecordAbsentField(t *testing.T) {
	holdings, err := HoldingsFromRecord(storage.Record{FieldUserID: float64(1)})
	if err != nil {
		t.Fatalf("HoldingsFromRecord: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("holdings = %v, want empty", holdings)
	}
}
