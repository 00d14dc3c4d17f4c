package app

import (
	"context"
	"log/slog"

	"github.com/mkorobov/tickertrack/bot"
	"github.com/mkorobov/tickertrack/core/bootstrap"
	"github.com/mkorobov/tickertrack/core/logger"
	coretelegram "github.com/mkorobov/tickertrack/core/telegram"
	"github.com/mkorobov/tickertrack/core/telegram/router"
	"github.com/mkorobov/tickertrack/core/telegram/state"
	"github.com/mkorobov/tickertrack/domain"
	"github.com/mkorobov/tickertrack/job"
	"github.com/mkorobov/tickertrack/market/moex"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/mkorobov/tickertrack/service"
	"github.com/mkorobov/tickertrack/storage"
)

// App holds the assembled application.
type App struct {
	cfg *Config

	store    storage.Store
	users    *service.Users
	exchange *service.Exchange

	scheduler *job.Scheduler
}

// newRepos builds the two repositories over the store. Users get an
// empty holdings map at creation time.
func newRepos(store storage.Store) (*repo.Repo[string], *repo.Repo[int64]) {
	shares := repo.New(store, domain.TableShares, domain.FieldTicker, repo.StringKey, nil)
	users := repo.New(store, domain.TableUsers, domain.FieldUserID, repo.Int64Key,
		map[string]repo.Initializer{
			domain.FieldTickers: func() any { return map[string]any{} },
		})
	return shares, users
}

// seedShares loads the share universe on first start: an empty shares
// table is filled from the exchange before the bot goes online.
func seedShares(cfg *Config) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, store storage.Store) error {
		shares, _ := newRepos(store)
		exchange := service.NewExchange(shares, moex.NewClient(cfg.ExchangeOptions()))
		tickers, err := exchange.Tickers(ctx)
		if err != nil {
			return err
		}
		if len(tickers) > 0 {
			logger.LogEvent(ctx, logger.SEED, slog.LevelDebug, "skip",
				slog.Int("shares_total", len(tickers)),
			)
			return nil
		}
		if err := exchange.Refresh(ctx); err != nil {
			return err
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "loaded")
		return nil
	})
}

// Bootstrap initializes infrastructure and builds the services.
func Bootstrap(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(context.Background(), bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Driver:   cfg.Storage.Driver,
		Tables:   []string{domain.TableShares, domain.TableUsers},
		Seeders:  []bootstrap.Seeder{seedShares(cfg)},
	})
	if err != nil {
		return nil, err
	}

	shares, users := newRepos(res.Store)
	exchange := service.NewExchange(shares, moex.NewClient(cfg.ExchangeOptions()))

	return &App{
		cfg:      cfg,
		store:    res.Store,
		exchange: exchange,
		users:    service.NewUsers(users, exchange),
	}, nil
}

// TelegramRunOptions wires the registry, routes, middleware chain and
// the refresh schedule into run options for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	sessions := state.NewMemoryManager()

	// The hidden admin command runs the same cycle as the scheduler,
	// so the notifier is created in OnStart once the bot exists.
	var notifier *job.Notifier
	b := bot.New(bot.Options{
		Registry: reg,
		Sessions: sessions,
		Users:    a.users,
		Exchange: a.exchange,
		RefreshNow: func(ctx context.Context) error {
			if notifier == nil {
				return a.exchange.Refresh(ctx)
			}
			return notifier.Run(ctx)
		},
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		Dialog:  b.Engine(),
	})
	routes = append(routes, router.TextRoutes(b.Engine(), reg, router.TextOptions{
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: b.UnknownCallback(),
	}))

	opts := coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			notifier = job.NewNotifier(a.exchange, a.users, rt.Bot)
			if a.cfg.Refresh.Enabled {
				a.scheduler = job.NewScheduler(notifier, a.cfg.RefreshInterval())
				a.scheduler.Start(ctx)
			}
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			if a.scheduler != nil {
				a.scheduler.Stop()
			}
			return nil
		},
	}
	return opts, nil
}
