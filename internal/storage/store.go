package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bridge-router/internal/config"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS route_events (
    id                BIGSERIAL PRIMARY KEY,
    provider          TEXT NOT NULL,
    source_chain      TEXT NOT NULL,
    destination_chain TEXT NOT NULL,
    outcome           TEXT NOT NULL,
    occurred_at       TIMESTAMPTZ NOT NULL,
    duration_ms       BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_route_events_route_time
    ON route_events (provider, source_chain, destination_chain, occurred_at DESC);

CREATE TABLE IF NOT EXISTS reliability_metrics (
    provider            TEXT NOT NULL,
    source_chain        TEXT NOT NULL,
    destination_chain   TEXT NOT NULL,
    total_attempts      INTEGER NOT NULL DEFAULT 0,
    successful_count    INTEGER NOT NULL DEFAULT 0,
    failed_count        INTEGER NOT NULL DEFAULT 0,
    timeout_count       INTEGER NOT NULL DEFAULT 0,
    reliability_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    reliability_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
    tier                TEXT NOT NULL DEFAULT 'low',
    window_mode         TEXT NOT NULL DEFAULT 'transaction_count',
    window_size         INTEGER NOT NULL DEFAULT 0,
    stale               BOOLEAN NOT NULL DEFAULT FALSE,
    computed_at         TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (provider, source_chain, destination_chain)
);

CREATE INDEX IF NOT EXISTS idx_reliability_metrics_pair
    ON reliability_metrics (source_chain, destination_chain);
`

// EnsureSchema creates the event log and metric cache tables when absent.
// Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure storage schema: %w", execErr)
	}
	return nil
}
