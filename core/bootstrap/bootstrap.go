// Package bootstrap initializes shared infrastructure: the logger,
// the key-value store and reference-data seeding.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/mkorobov/tickertrack/core/config"
	coredatabase "github.com/mkorobov/tickertrack/core/database"
	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/storage"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// Driver selects the store backend. Empty means postgres.
	Driver string
	// Tables are ensured on the store before seeding. The postgres
	// driver creates them via migrations instead.
	Tables []string

	Seeders []Seeder

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil for the memory driver.
	DB    *sqlx.DB
	Store storage.Store
}

// Run initializes the logger, builds the store, applies migrations
// and runs the seeders.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}

	switch opts.Driver {
	case DriverMemory:
		store := storage.NewMemory()
		for _, table := range opts.Tables {
			if err := store.EnsureTable(ctx, table); err != nil {
				return nil, fmt.Errorf("bootstrap: ensure table %s: %w", table, err)
			}
		}
		res.Store = store

	case DriverPostgres, "":
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
		res.Store = storage.NewPostgres(db)

	default:
		return nil, fmt.Errorf("bootstrap: unknown storage driver %q", opts.Driver)
	}

	for _, seeder := range opts.Seeders {
		if seeder == nil {
			continue
		}
		if err := seeder.Seed(ctx, res.Store); err != nil {
			if res.DB != nil {
				_ = res.DB.Close()
			}
			return nil, fmt.Errorf("bootstrap: seeding failed: %w", err)
		}
	}

	return res, nil
}
