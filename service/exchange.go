// Package service implements the entity-level operations over the
// repositories: the exchange share universe and per-user holdings.
package service

import (
	"context"
	"time"

	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/domain"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/mkorobov/tickertrack/storage"
	"log/slog"
)

// MarketSource provides the full share universe for a refresh.
type MarketSource interface {
	FetchShares(ctx context.Context) ([]domain.Share, error)
}

// TickerPage is one page of the ticker listing with navigation metadata.
type TickerPage struct {
	Tickers    []string
	PrevPage   int
	NextPage   int
	TotalPages int
}

// Exchange exposes the shares table: the ticker universe, single-share
// detail and the market-data refresh.
type Exchange struct {
	shares *repo.Repo[string]
	source MarketSource
}

// NewExchange binds the shares repository to a market-data source.
func NewExchange(shares *repo.Repo[string], source MarketSource) *Exchange {
	return &Exchange{shares: shares, source: source}
}

// Tickers returns every known ticker via a projected scan.
func (e *Exchange) Tickers(ctx context.Context) ([]string, error) {
	recs, err := e.shares.Filter(ctx, nil, domain.FieldTicker)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		ticker, err := domain.StringField(rec, domain.FieldTicker)
		if err != nil {
			return nil, err
		}
		out = append(out, ticker)
	}
	return out, nil
}

// Detail fetches the full share record for one ticker.
func (e *Exchange) Detail(ctx context.Context, ticker string) (domain.Share, error) {
	rec, err := e.shares.Get(ctx, ticker)
	if err != nil {
		return domain.Share{}, err
	}
	return domain.ShareFromRecord(rec)
}

// PageOfTickers returns one page of the ticker listing.
func (e *Exchange) PageOfTickers(ctx context.Context, page int) (TickerPage, error) {
	p, err := e.shares.Paginate(ctx, page)
	if err != nil {
		return TickerPage{}, err
	}
	out := TickerPage{
		Tickers:    make([]string, 0, len(p.Items)),
		PrevPage:   p.PrevPage,
		NextPage:   p.NextPage,
		TotalPages: p.TotalPages,
	}
	for _, rec := range p.Items {
		ticker, err := domain.StringField(rec, domain.FieldTicker)
		if err != nil {
			return TickerPage{}, err
		}
		out.Tickers = append(out.Tickers, ticker)
	}
	return out, nil
}

// Refresh overwrites the shares table with the latest market data.
// Every fetched row is upserted by ticker; nothing is deleted.
func (e *Exchange) Refresh(ctx context.Context) error {
	start := time.Now()
	shares, err := e.source.FetchShares(ctx)
	if err != nil {
		return err
	}
	for _, share := range shares {
		if err := e.shares.Put(ctx, share.Ticker, share.Record()); err != nil {
			return err
		}
	}
	logger.LogEvent(ctx, logger.SVCExchange, slog.LevelInfo, "shares_refresh",
		slog.String("status", "ok"),
		slog.Int("shares_total", len(shares)),
		slog.Duration("duration", logger.RoundMS(logger.Took(start))),
	)
	return nil
}

// sharesFor returns projected share rows for the given tickers.
func (e *Exchange) sharesFor(ctx context.Context, tickers []string) ([]storage.Record, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	values := make([]any, len(tickers))
	for i, t := range tickers {
		values[i] = t
	}
	return e.shares.Filter(ctx, storage.In(domain.FieldTicker, values...),
		domain.FieldTicker, domain.FieldLotPrice, domain.FieldLotPriceChange)
}
