// Package store selects and prepares the configured SQL backend.
package store

import (
	"context"
	"fmt"

	"github.com/sarthak03dot/Chat-App/internal/config"
	"github.com/sarthak03dot/Chat-App/internal/store/postgres"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlite"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
)

// Open connects to the configured driver and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (*sqlstore.DB, error) {
	var (
		db      *sqlstore.DB
		err     error
		migrate func(context.Context, *sqlstore.DB) error
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err = sqlite.Open(ctx, cfg.SQLitePath)
		migrate = sqlite.Migrate
	case config.DriverPostgres:
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		migrate = postgres.Migrate
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.StoreDriver, err)
	}
	return db, nil
}
