package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reroute_records (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		vehicle_id  TEXT NOT NULL,
		tick        BIGINT NOT NULL,
		old_route   JSONB NOT NULL DEFAULT '[]',
		new_route   JSONB NOT NULL DEFAULT '[]',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (session_id, vehicle_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reroute_records_session_tick
		ON reroute_records (session_id, tick)`,
	`CREATE TABLE IF NOT EXISTS session_telemetry (
		id                 BIGSERIAL PRIMARY KEY,
		session_id         TEXT NOT NULL,
		tick               BIGINT NOT NULL,
		time               TIMESTAMPTZ NOT NULL,
		congested_edges    INTEGER NOT NULL,
		rerouted_vehicles  INTEGER NOT NULL,
		UNIQUE (session_id, tick)
	)`,
}

// EnsureSchema creates the persistence tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
