// Package moex fetches share quotes from the MOEX ISS securities API.
package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/core/telegram/netutil"
	"github.com/mkorobov/tickertrack/domain"
	"log/slog"
)

// DefaultEndpoint lists TQBR board securities with quotes.
const DefaultEndpoint = "https://iss.moex.com/iss/engines/stock/markets/shares/boards/TQBR/securities.json"

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
)

// Source produces the full share universe for a refresh.
type Source interface {
	FetchShares(ctx context.Context) ([]domain.Share, error)
}

// Options configures the ISS client; zero values select defaults.
type Options struct {
	Endpoint string
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// Client is an HTTP client for the ISS securities listing.
type Client struct {
	endpoint string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

// NewClient builds a Client with retry on transient network failures.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Client{
		endpoint: opts.Endpoint,
		http:     &http.Client{Timeout: opts.Timeout},
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
	}
}

// issTable is the MOEX ISS columns-and-rows block layout.
type issTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func (t issTable) index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

type issResponse struct {
	Securities issTable `json:"securities"`
	Marketdata issTable `json:"marketdata"`
}

// FetchShares implements Source. Rows with incomplete quote data are
// skipped so only fully priced shares reach the store.
func (c *Client) FetchShares(ctx context.Context) ([]domain.Share, error) {
	start := time.Now()
	resp, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("moex fetch: %w", err)
	}

	shares, skipped, err := transform(resp)
	if err != nil {
		return nil, fmt.Errorf("moex transform: %w", err)
	}

	if logger.MOEX != nil {
		logger.MOEX.LogAttrs(ctx, slog.LevelInfo, "shares fetched",
			slog.String("event", "fetch"),
			slog.String("status", "ok"),
			slog.Int("shares_total", len(shares)),
			slog.Int("shares_skipped", skipped),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return shares, nil
}

func (c *Client) fetch(ctx context.Context) (*issResponse, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("iss.meta", "off")
	q.Set("securities.columns", "SECID,LOTSIZE,SECNAME")
	q.Set("marketdata.columns", "SECID,LAST,LASTTOPREVPRICE")
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if !netutil.ShouldRetry(err) || attempt == c.attempts {
				break
			}
			timer := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}

		out, err := decode(resp)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, lastErr
}

func decode(resp *http.Response) (*issResponse, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var out issResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// transform zips the securities and marketdata blocks row by row. The
// two blocks are parallel for a board listing; rows whose tickers
// disagree or that carry nulls are dropped.
func transform(resp *issResponse) ([]domain.Share, int, error) {
	secID := resp.Securities.index("SECID")
	lotSize := resp.Securities.index("LOTSIZE")
	secName := resp.Securities.index("SECNAME")
	mdID := resp.Marketdata.index("SECID")
	last := resp.Marketdata.index("LAST")
	lastToPrev := resp.Marketdata.index("LASTTOPREVPRICE")
	if secID < 0 || lotSize < 0 || secName < 0 || mdID < 0 || last < 0 || lastToPrev < 0 {
		return nil, 0, fmt.Errorf("missing expected columns: securities=%v marketdata=%v",
			resp.Securities.Columns, resp.Marketdata.Columns)
	}

	n := len(resp.Securities.Data)
	if len(resp.Marketdata.Data) < n {
		n = len(resp.Marketdata.Data)
	}

	var (
		shares  []domain.Share
		skipped int
	)
	for i := 0; i < n; i++ {
		sec := resp.Securities.Data[i]
		md := resp.Marketdata.Data[i]

		ticker, ok1 := cell[string](sec, secID)
		mdTicker, ok2 := cell[string](md, mdID)
		name, ok3 := cell[string](sec, secName)
		size, ok4 := cell[float64](sec, lotSize)
		price, ok5 := cell[float64](md, last)
		changeRatio, ok6 := cell[float64](md, lastToPrev)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || ticker != mdTicker {
			skipped++
			continue
		}

		lots := decimal.NewFromInt(int64(size))
		priceDec := decimal.NewFromFloat(price)
		shares = append(shares, domain.Share{
			Ticker:         ticker,
			Name:           name,
			Price:          priceDec,
			LotSize:        int64(size),
			LotPrice:       priceDec.Mul(lots).Round(0),
			LotPriceChange: decimal.NewFromFloat(changeRatio).Mul(lots),
		})
	}
	return shares, skipped, nil
}

func cell[T any](row []any, idx int) (T, bool) {
	var zero T
	if idx < 0 || idx >= len(row) {
		return zero, false
	}
	v, ok := row[idx].(T)
	return v, ok
}
