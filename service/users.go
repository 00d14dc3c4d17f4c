package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/domain"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/mkorobov/tickertrack/storage"
)

// Users manages per-user holdings. Position queries join holdings
// against the share universe through Exchange.
type Users struct {
	users    *repo.Repo[int64]
	exchange *Exchange
}

// NewUsers binds the users repository to the exchange service.
func NewUsers(users *repo.Repo[int64], exchange *Exchange) *Users {
	return &Users{users: users, exchange: exchange}
}

// Ensure creates the user row with empty holdings on first contact.
func (u *Users) Ensure(ctx context.Context, id int64) error {
	_, err := u.users.GetOrCreate(ctx, id)
	return err
}

// Holdings returns the user's ticker-to-amount map via a projected
// filter on the user id. The user row must already exist.
func (u *Users) Holdings(ctx context.Context, id int64) (domain.Holdings, error) {
	recs, err := u.users.Filter(ctx, storage.Eq(domain.FieldUserID, id), domain.FieldTickers)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("user %d: %w", id, repo.ErrNotFound)
	}
	return domain.HoldingsFromRecord(recs[0])
}

// Tickers returns the user's tickers in sorted order.
func (u *Users) Tickers(ctx context.Context, id int64) ([]string, error) {
	holdings, err := u.Holdings(ctx, id)
	if err != nil {
		return nil, err
	}
	return holdings.Tickers(), nil
}

// SetHolding writes the amount for one ticker, adding or replacing the
// nested entry in place.
func (u *Users) SetHolding(ctx context.Context, id int64, ticker string, amount int64) error {
	ticker = strings.ToUpper(ticker)
	path := domain.FieldTickers + "." + ticker
	if err := u.users.Update(ctx, id, storage.Set(path, map[string]any{domain.FieldAmount: amount})); err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "holding_set",
		slog.Int64("user_id", id),
		slog.String("ticker", ticker),
		slog.Int64("amount", amount),
	)
	return nil
}

// RemoveHolding deletes one ticker entry from the user's holdings.
func (u *Users) RemoveHolding(ctx context.Context, id int64, ticker string) error {
	ticker = strings.ToUpper(ticker)
	path := domain.FieldTickers + "." + ticker
	if err := u.users.Update(ctx, id, storage.Remove(path)); err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "holding_removed",
		slog.Int64("user_id", id),
		slog.String("ticker", ticker),
	)
	return nil
}

// Positions joins the user's holdings with current market data. Each
// position carries the lot price and capitalization; the daily change
// is filled only when withChange is set.
func (u *Users) Positions(ctx context.Context, id int64, withChange bool) ([]domain.Position, error) {
	holdings, err := u.Holdings(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, nil
	}
	recs, err := u.exchange.sharesFor(ctx, holdings.Tickers())
	if err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(recs))
	for _, rec := range recs {
		ticker, err := domain.StringField(rec, domain.FieldTicker)
		if err != nil {
			return nil, err
		}
		lotPrice, err := domain.DecimalField(rec, domain.FieldLotPrice)
		if err != nil {
			return nil, err
		}
		amount := holdings[ticker].Amount
		pos := domain.Position{
			Ticker:         ticker,
			Amount:         amount,
			LotPrice:       lotPrice,
			Capitalization: lotPrice.Mul(decimal.NewFromInt(amount)),
		}
		if withChange {
			change, err := domain.DecimalField(rec, domain.FieldLotPriceChange)
			if err != nil {
				return nil, err
			}
			pos.Change = change.Mul(decimal.NewFromInt(amount)).Round(0)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// AllIDs lists every known user id for the notification fan-out.
func (u *Users) AllIDs(ctx context.Context) ([]int64, error) {
	recs, err := u.users.Filter(ctx, nil, domain.FieldUserID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		id, err := domain.IntField(rec, domain.FieldUserID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
