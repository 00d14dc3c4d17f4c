package moex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const issFixture = `{
  "securities": {
    "columns": ["SECID", "LOTSIZE", "SECNAME"],
    "data": [
      ["SBER", 10, "Sberbank"],
      ["GAZP", 10, "Gazprom"],
      ["HALT", 100, "Halted Co"]
    ]
  },
  "marketdata": {
    "columns": ["SECID", "LAST", "LASTTOPREVPRICE"],
    "data": [
      ["SBER", 310.57, -1.24],
      ["GAZP", 170.4, 0.8],
      ["HALT", null, null]
    ]
  }
}`

func TestFetchShares(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issFixture))
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL})
	shares, err := client.FetchShares(context.Background())
	if err != nil {
		t.Fatalf("FetchShares: %v", err)
	}

	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2 (null quote row skipped)", len(shares))
	}

	sber := shares[0]
	if sber.Ticker != "SBER" || sber.Name != "Sberbank" || sber.LotSize != 10 {
		t.Errorf("share = %+v", sber)
	}
	if sber.Price.String() != "310.57" {
		t.Errorf("Price = %s, want 310.57", sber.Price)
	}
	// Lot price is rounded to whole currency units.
	if sber.LotPrice.String() != "3106" {
		t.Errorf("LotPrice = %s, want 3106", sber.LotPrice)
	}
	// The per-lot change stays unrounded.
	if sber.LotPriceChange.String() != "-12.4" {
		t.Errorf("LotPriceChange = %s, want -12.4", sber.LotPriceChange)
	}

	for _, want := range []string{"iss.meta=off", "SECID%2CLOTSIZE%2CSECNAME", "SECID%2CLAST%2CLASTTOPREVPRICE"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q misses %q", gotQuery, want)
		}
	}
}

func TestFetchSharesBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Options{Endpoint: server.URL})
	if _, err := client.FetchShares(context.Background()); err == nil {
		t.Fatal("FetchShares succeeded on 502")
	}
}

func TestTransformTickerMismatch(t *testing.T) {
	resp := &issResponse{
		Securities: issTable{
			Columns: []string{"SECID", "LOTSIZE", "SECNAME"},
			Data:    [][]any{{"SBER", float64(10), "Sberbank"}},
		},
		Marketdata: issTable{
			Columns: []string{"SECID", "LAST", "LASTTOPREVPRICE"},
			Data:    [][]any{{"GAZP", float64(170.4), float64(0.8)}},
		},
	}
	shares, skipped, err := transform(resp)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(shares) != 0 || skipped != 1 {
		t.Errorf("shares=%d skipped=%d, want 0 and 1", len(shares), skipped)
	}
}

func TestTransformMissingColumns(t *testing.T) {
	resp := &issResponse{
		Securities: issTable{Columns: []string{"SECID"}},
		Marketdata: issTable{Columns: []string{"SECID"}},
	}
	if _, _, err := transform(resp); err == nil {
		t.Fatal("transform accepted missing columns")
	}
}
