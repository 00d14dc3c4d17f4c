// Package app assembles the portfolio bot: configuration, storage,
// services, handlers and the refresh schedule.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mkorobov/tickertrack/core/bootstrap"
	coreconfig "github.com/mkorobov/tickertrack/core/config"
	coredatabase "github.com/mkorobov/tickertrack/core/database"
	"github.com/mkorobov/tickertrack/market/moex"
)

// StorageConfig selects the store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// ExchangeConfig controls the market-data client.
type ExchangeConfig struct {
	Endpoint       string `yaml:"endpoint" envconfig:"EXCHANGE_ENDPOINT"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"EXCHANGE_TIMEOUT_SECONDS"`
	Attempts       int    `yaml:"attempts" envconfig:"EXCHANGE_ATTEMPTS"`
}

// RefreshConfig controls the periodic refresh-and-notify cycle.
type RefreshConfig struct {
	Enabled         bool `yaml:"enabled" envconfig:"REFRESH_ENABLED"`
	IntervalMinutes int  `yaml:"interval_minutes" envconfig:"REFRESH_INTERVAL_MINUTES"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Storage  StorageConfig       `yaml:"storage"`
	Exchange ExchangeConfig      `yaml:"exchange"`
	Refresh  RefreshConfig       `yaml:"refresh"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// ExchangeOptions converts the exchange section into client options.
func (c *Config) ExchangeOptions() moex.Options {
	opts := moex.Options{Endpoint: c.Exchange.Endpoint}
	if c.Exchange.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(c.Exchange.TimeoutSeconds) * time.Second
	}
	if c.Exchange.Attempts > 0 {
		opts.Attempts = c.Exchange.Attempts
	}
	return opts
}

// RefreshInterval returns the configured refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalMinutes) * time.Minute
}

// LoadConfig reads the YAML config file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = bootstrap.DriverPostgres
	}
	switch driver {
	case bootstrap.DriverPostgres, bootstrap.DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	if cfg.Exchange.TimeoutSeconds < 0 {
		return fmt.Errorf("exchange.timeout_seconds must be >= 0")
	}
	if cfg.Exchange.Attempts < 0 {
		return fmt.Errorf("exchange.attempts must be >= 0")
	}

	if cfg.Refresh.Enabled && cfg.Refresh.IntervalMinutes <= 0 {
		cfg.Refresh.IntervalMinutes = 60
	}
	return nil
}
