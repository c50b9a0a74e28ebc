// Package database opens the PostgreSQL pool that backs progress records and
// owns their schema.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-academy/internal/platform/config"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New opens a connection pool sized by cfg and applies Schema, so a returned
// DB always has the progress tables.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.MaxConns < 1 {
		return nil, fmt.Errorf("max connections must be at least 1, got %d", cfg.MaxConns)
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("min connections must be between 0 and %d, got %d", cfg.MaxConns, cfg.MinConns)
	}
	poolCfg, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{Pool: pool}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("progress schema ready", "statements", len(Schema))
	return db, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the connection is alive and the progress tables exist.
func (db *DB) HealthCheck(ctx context.Context) error {
	var ready bool
	err := db.Pool.QueryRow(ctx,
		`SELECT to_regclass('watch_progress') IS NOT NULL
		    AND to_regclass('challenge_attempts') IS NOT NULL`,
	).Scan(&ready)
	if err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	if !ready {
		return fmt.Errorf("progress tables are missing")
	}
	return nil
}
