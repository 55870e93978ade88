// Package db provides PostgreSQL persistence for runs, result records,
// items, and recurring job definitions.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool. minPoolSize should be at least the
// run concurrency limit so concurrent item tasks do not contend for
// connections; pass 0 to keep the driver default.
func Connect(ctx context.Context, databaseURL string, minPoolSize int) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if minPoolSize > 0 && cfg.MaxConns < int32(minPoolSize) {
		cfg.MaxConns = int32(minPoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
