package bootstrap

import (
	"context"

	"github.com/mkorobov/tickertrack/storage"
)

// Seeder loads reference data into the store during bootstrap.
type Seeder interface {
	Seed(ctx context.Context, store storage.Store) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, store storage.Store) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, store storage.Store) error {
	return f(ctx, store)
}
