// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database owns the PostgreSQL connection pool and the versioned
// schema migrations. Request handlers never see the pool directly; the API
// layer opens one transaction per request and hands it down as a pgx.Tx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krre/ocean-backend/internal/config"
	"github.com/krre/ocean-backend/internal/logging"
)

// DB wraps the pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, verifies the connection and applies pending
// migrations.
func New(ctx context.Context, cfg config.PostgresConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = 25
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL")

	return db, nil
}

// Pool exposes the underlying pool for components that manage their own
// statements (trash monitor, user cache load).
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Begin opens a request-scoped transaction.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Close releases all pool connections.
func (db *DB) Close() {
	db.pool.Close()
}
