// Package store is the relay's append-only audit log: every resolved
// contract and every finished lot session is written to Postgres for
// after-the-fact reporting. It is never read back by the relay itself —
// live state lives entirely in the in-memory Lot Coordinator and Trade
// Lifecycle Manager (spec Non-goals: "no crash-recovery of in-flight
// state from the audit log"). Grounded on internal/database/db.go's DB
// (pgxpool wiring, an embedded slice of CREATE TABLE IF NOT EXISTS
// migrations run once at startup) and internal/database/repository.go's
// Repository (QueryRow/Exec per table), narrowed from a full multi-table
// trading schema to the two tables this relay actually needs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"options-relay/config"
)

// DB wraps the Postgres connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to Postgres and verifies connectivity. Returns an error —
// unlike the degrade-in-place posture of internal/cache, a configured audit
// log that can't connect is a startup failure, matching §7's "config error"
// class (fail fast, do not start in a half-working state).
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations creates the audit-log schema if it doesn't already exist.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trade_resolutions (
			id BIGSERIAL PRIMARY KEY,
			contract_id BIGINT NOT NULL,
			asset VARCHAR(32) NOT NULL,
			trade_type VARCHAR(8) NOT NULL,
			stake DECIMAL(20, 8) NOT NULL,
			entry_spot DECIMAL(20, 8) NOT NULL,
			profit DECIMAL(20, 8) NOT NULL,
			min_profit DECIMAL(20, 8) NOT NULL,
			max_profit DECIMAL(20, 8) NOT NULL,
			result VARCHAR(8) NOT NULL,
			date_start TIMESTAMP NOT NULL,
			date_expiry TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_resolutions_asset ON trade_resolutions(asset)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_resolutions_contract_id ON trade_resolutions(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_resolutions_resolved_at ON trade_resolutions(resolved_at)`,

		`CREATE TABLE IF NOT EXISTS lot_sessions (
			id BIGSERIAL PRIMARY KEY,
			policy VARCHAR(16) NOT NULL,
			grand_profit DECIMAL(20, 8) NOT NULL,
			win_count INT NOT NULL,
			loss_count INT NOT NULL,
			target_profit DECIMAL(20, 8) NOT NULL,
			target_win INT NOT NULL,
			ended_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lot_sessions_ended_at ON lot_sessions(ended_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("store: migration %d: %w", i+1, err)
		}
	}
	return nil
}

// HealthCheck reports whether the audit database is reachable.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
