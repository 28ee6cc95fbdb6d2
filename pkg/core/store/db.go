package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workbench_scenarios (
    name        TEXT PRIMARY KEY,
    horizon     INTEGER NOT NULL,
    period_mode TEXT NOT NULL,
    snapshot    JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// InitDB initializes the database connection pool and makes sure the
// scenario table exists. Later calls return the first call's result.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		if dbURL == "" {
			err = fmt.Errorf("database URL not set (DATABASE_URL)")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		p, connErr := pgxpool.NewWithConfig(ctx, config)
		if connErr != nil {
			err = fmt.Errorf("failed to connect: %w", connErr)
			return
		}
		if pingErr := p.Ping(ctx); pingErr != nil {
			p.Close()
			err = fmt.Errorf("failed to ping database: %w", pingErr)
			return
		}
		if _, execErr := p.Exec(ctx, schemaSQL); execErr != nil {
			p.Close()
			err = fmt.Errorf("failed to create scenario table: %w", execErr)
			return
		}
		pool = p
	})
	return err
}

// GetPool returns the database connection pool, or nil if InitDB failed or was not called.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
