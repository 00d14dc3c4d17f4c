package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/domain"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/mkorobov/tickertrack/storage"
)

type staticSource struct {
	shares []domain.Share
}

func (s *staticSource) FetchShares(context.Context) ([]domain.Share, error) {
	return s.shares, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func newServices(t *testing.T, universe []domain.Share) (*Exchange, *Users) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	for _, table := range []string{domain.TableShares, domain.TableUsers} {
		if err := store.EnsureTable(ctx, table); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
	}

	shares := repo.New(store, domain.TableShares, domain.FieldTicker, repo.StringKey, nil)
	userRepo := repo.New(store, domain.TableUsers, domain.FieldUserID, repo.Int64Key,
		map[string]repo.Initializer{
			domain.FieldTickers: func() any { return map[string]any{} },
		})

	exchange := NewExchange(shares, &staticSource{shares: universe})
	if len(universe) > 0 {
		if err := exchange.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	return exchange, NewUsers(userRepo, exchange)
}

func testUniverse(t *testing.T) []domain.Share {
	return []domain.Share{
		{Ticker: "GAZP", Name: "Gazprom", Price: dec(t, "170.4"), LotSize: 10,
			LotPrice: dec(t, "1704"), LotPriceChange: dec(t, "8")},
		{Ticker: "SBER", Name: "Sberbank", Price: dec(t, "310.57"), LotSize: 10,
			LotPrice: dec(t, "3106"), LotPriceChange: dec(t, "-12.4")},
	}
}

func TestExchangeTickersAndDetail(t *testing.T) {
	ctx := context.Background()
	exchange, _ := newServices(t, testUniverse(t))

	tickers, err := exchange.Tickers(ctx)
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("Tickers = %v, want 2 entries", tickers)
	}

	share, err := exchange.Detail(ctx, "SBER")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if share.Name != "Sberbank" || !share.LotPrice.Equal(dec(t, "3106")) {
		t.Errorf("Detail = %+v", share)
	}

	if _, err := exchange.Detail(ctx, "NOPE"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Detail missing ticker: got %v, want ErrNotFound", err)
	}
}

func TestExchangeRefreshOverwrites(t *testing.T) {
	ctx := context.Background()
	universe := testUniverse(t)
	exchange, _ := newServices(t, universe)

	universe[1].LotPrice = dec(t, "3200")
	if err := exchange.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	share, err := exchange.Detail(ctx, "SBER")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if !share.LotPrice.Equal(dec(t, "3200")) {
		t.Errorf("LotPrice = %s, want 3200", share.LotPrice)
	}
}

func TestUsersHoldingsLifecycle(t *testing.T) {
	ctx := context.Background()
	_, users := newServices(t, testUniverse(t))

	if err := users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	holdings, err := users.Holdings(ctx, 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Fatalf("new user holdings = %v, want empty", holdings)
	}

	if err := users.SetHolding(ctx, 1, "sber", 3); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}
	tickers, err := users.Tickers(ctx, 1)
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(tickers) != 1 || tickers[0] != "SBER" {
		t.Errorf("Tickers = %v, want [SBER] (upper-cased)", tickers)
	}

	if err := users.SetHolding(ctx, 1, "SBER", 7); err != nil {
		t.Fatalf("SetHolding update: %v", err)
	}
	holdings, err = users.Holdings(ctx, 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if holdings["SBER"].Amount != 7 {
		t.Errorf("amount = %d, want 7", holdings["SBER"].Amount)
	}

	if err := users.RemoveHolding(ctx, 1, "SBER"); err != nil {
		t.Fatalf("RemoveHolding: %v", err)
	}
	holdings, err = users.Holdings(ctx, 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("holdings after remove = %v, want empty", holdings)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	_, users := newServices(t, testUniverse(t))

	for _, id := range []int64{1, 2} {
		if err := users.Ensure(ctx, id); err != nil {
			t.Fatalf("Ensure(%d): %v", id, err)
		}
	}
	if err := users.SetHolding(ctx, 1, "SBER", 3); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	other, err := users.Holdings(ctx, 2)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("user 2 holdings = %v, want empty", other)
	}
}

func TestHoldingsMissingUser(t *testing.T) {
	_, users := newServices(t, nil)
	if _, err := users.Holdings(context.Background(), 404); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Holdings: got %v, want wrapped ErrNotFound", err)
	}
}

func TestPositions(t *testing.T) {
	ctx := context.Background()
	_, users := newServices(t, testUniverse(t))

	if err := users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := users.SetHolding(ctx, 1, "SBER", 2); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}
	if err := users.SetHolding(ctx, 1, "GAZP", 1); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	positions, err := users.Positions(ctx, 1, true)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(positions))
	}

	byTicker := map[string]domain.Position{}
	for _, pos := range positions {
		byTicker[pos.Ticker] = pos
	}

	sber := byTicker["SBER"]
	if sber.Amount != 2 {
		t.Errorf("SBER amount = %d, want 2", sber.Amount)
	}
	if !sber.Capitalization.Equal(dec(t, "6212")) {
		t.Errorf("SBER capitalization = %s, want 6212", sber.Capitalization)
	}
	// 2 lots at -12.4 per lot, rounded to whole units.
	if !sber.Change.Equal(dec(t, "-25")) {
		t.Errorf("SBER change = %s, want -25", sber.Change)
	}

	gazp := byTicker["GAZP"]
	if !gazp.Change.Equal(dec(t, "8")) {
		t.Errorf("GAZP change = %s, want 8", gazp.Change)
	}
}

func TestPositionsEmptyPortfolio(t *testing.T) {
	ctx := context.Background()
	_, users := newServices(t, testUniverse(t))

	if err := users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	positions, err := users.Positions(ctx, 1, false)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("positions = %v, want none", positions)
	}
}

func TestPageOfTickers(t *testing.T) {
	ctx := context.Background()
	exchange, _ := newServices(t, testUniverse(t))

	page, err := exchange.PageOfTickers(ctx, 1)
	if err != nil {
		t.Fatalf("PageOfTickers: %v", err)
	}
	if len(page.Tickers) != 2 || page.TotalPages != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.PrevPage != 0 || page.NextPage != 0 {
		t.Errorf("prev/next = %d/%d, want 0/0", page.PrevPage, page.NextPage)
	}

	var rangeErr *repo.PageOutOfRangeError
	if _, err := exchange.PageOfTickers(ctx, 5); !errors.As(err, &rangeErr) {
		t.Fatalf("PageOfTickers(5): got %v, want PageOutOfRangeError", err)
	}
}
