package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mkorobov/tickertrack/storage"
)

func newShareRepo(t *testing.T) *Repo[string] {
	t.Helper()
	store := storage.NewMemory()
	if err := store.EnsureTable(context.Background(), "shares"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return New[string](store, "shares", "ticker", StringKey, nil)
}

func newUserRepo(t *testing.T) *Repo[int64] {
	t.Helper()
	store := storage.NewMemory()
	if err := store.EnsureTable(context.Background(), "users"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return New[int64](store, "users", "user_id", Int64Key, map[string]Initializer{
		"tickers": func() any { return map[string]any{} },
	})
}

func seedShares(t *testing.T, r *Repo[string], n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ticker := fmt.Sprintf("T%03d", i)
		if err := r.Put(ctx, ticker, storage.Record{"ticker": ticker}); err != nil {
			t.Fatalf("Put %s: %v", ticker, err)
		}
	}
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	r := newUserRepo(t)

	rec, err := r.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if rec["user_id"] != float64(42) {
		t.Errorf("user_id = %v, want 42", rec["user_id"])
	}
	tickers, ok := rec["tickers"].(map[string]any)
	if !ok || len(tickers) != 0 {
		t.Errorf("tickers = %v, want empty map", rec["tickers"])
	}

	// A second call must not reset existing data.
	if err := r.Update(ctx, 42, storage.Set("tickers.SBER", map[string]any{"amount": 5})); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, err = r.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	tickers = rec["tickers"].(map[string]any)
	if _, ok := tickers["SBER"]; !ok {
		t.Error("GetOrCreate wiped existing holdings")
	}
}

func TestGetMissing(t *testing.T) {
	r := newShareRepo(t)
	if _, err := r.Get(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}

func TestFilterProjection(t *testing.T) {
	ctx := context.Background()
	r := newShareRepo(t)
	seedShares(t, r, 5)

	recs, err := r.Filter(ctx, storage.In("ticker", "T001", "T003"), "ticker")
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Filter returned %d records, want 2", len(recs))
	}
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	r := newShareRepo(t)
	seedShares(t, r, 120)

	page, err := r.Paginate(ctx, 1)
	if err != nil {
		t.Fatalf("Paginate(1): %v", err)
	}
	if len(page.Items) != DefaultPageSize {
		t.Errorf("page 1 has %d items, want %d", len(page.Items), DefaultPageSize)
	}
	if page.PrevPage != 0 {
		t.Errorf("page 1 PrevPage = %d, want 0", page.PrevPage)
	}
	if page.NextPage != 2 {
		t.Errorf("page 1 NextPage = %d, want 2", page.NextPage)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}

	page, err = r.Paginate(ctx, 3)
	if err != nil {
		t.Fatalf("Paginate(3): %v", err)
	}
	if len(page.Items) != 20 {
		t.Errorf("page 3 has %d items, want 20", len(page.Items))
	}
	if page.PrevPage != 2 || page.NextPage != 0 {
		t.Errorf("page 3 prev/next = %d/%d, want 2/0", page.PrevPage, page.NextPage)
	}
}

func TestPaginateStableOrder(t *testing.T) {
	ctx := context.Background()
	r := newShareRepo(t)
	seedShares(t, r, 60)

	first, err := r.Paginate(ctx, 1)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	second, err := r.Paginate(ctx, 2)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	last := first.Items[len(first.Items)-1]["ticker"].(string)
	next := second.Items[0]["ticker"].(string)
	if strings.Compare(last, next) >= 0 {
		t.Errorf("pages overlap: %q before %q", last, next)
	}
}

func TestPaginateOutOfRange(t *testing.T) {
	ctx := context.Background()
	r := newShareRepo(t)
	seedShares(t, r, 120)

	for _, page := range []int{0, -1, 4} {
		_, err := r.Paginate(ctx, page)
		var rangeErr *PageOutOfRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("Paginate(%d): got %v, want PageOutOfRangeError", page, err)
		}
		if rangeErr.Page != page || rangeErr.LastPage != 3 {
			t.Errorf("Paginate(%d): error carries %d/%d", page, rangeErr.Page, rangeErr.LastPage)
		}
	}
}

func TestPaginateEmptyTable(t *testing.T) {
	r := newShareRepo(t)

	_, err := r.Paginate(context.Background(), 1)
	var rangeErr *PageOutOfRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("Paginate on empty table: got %v, want PageOutOfRangeError", err)
	}
	if rangeErr.LastPage != 0 {
		t.Errorf("LastPage = %d, want 0", rangeErr.LastPage)
	}
}

func TestPaginateSize(t *testing.T) {
	ctx := context.Background()
	r := newShareRepo(t)
	seedShares(t, r, 7)

	page, err := r.PaginateSize(ctx, 2, 3)
	if err != nil {
		t.Fatalf("PaginateSize: %v", err)
	}
	if len(page.Items) != 3 || page.TotalPages != 3 {
		t.Errorf("page = %d items, %d total pages; want 3 and 3", len(page.Items), page.TotalPages)
	}
}
