package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// RerouteRecordRepository handles PostgreSQL operations for reroute records
type RerouteRecordRepository struct {
	db *sql.DB
}

// NewRerouteRecordRepository creates a new RerouteRecordRepository
func NewRerouteRecordRepository(db *sql.DB) *RerouteRecordRepository {
	return &RerouteRecordRepository{db: db}
}

// InsertBatch writes records in one transaction. A record that already exists
// for the same session and vehicle is left untouched.
func (r *RerouteRecordRepository) InsertBatch(ctx context.Context, records []domain.RerouteRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reroute_records (
			id, session_id, vehicle_id, tick, old_route, new_route, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, vehicle_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		oldJSON, err := json.Marshal(routeOrEmpty(rec.OldRoute))
		if err != nil {
			return fmt.Errorf("failed to marshal old route: %w", err)
		}
		newJSON, err := json.Marshal(routeOrEmpty(rec.NewRoute))
		if err != nil {
			return fmt.Errorf("failed to marshal new route: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			rec.ID,
			rec.SessionID,
			rec.VehicleID,
			rec.Tick,
			oldJSON,
			newJSON,
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reroute record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBySessionID returns a session's records ordered by tick
func (r *RerouteRecordRepository) GetBySessionID(ctx context.Context, sessionID string) ([]domain.RerouteRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, vehicle_id, tick, old_route, new_route, created_at
		FROM reroute_records
		WHERE session_id = $1
		ORDER BY tick ASC, vehicle_id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reroute records: %w", err)
	}
	defer rows.Close()

	var out []domain.RerouteRecord
	for rows.Next() {
		var rec domain.RerouteRecord
		var oldJSON, newJSON []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.VehicleID,
			&rec.Tick,
			&oldJSON,
			&newJSON,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reroute record: %w", err)
		}
		if err := json.Unmarshal(oldJSON, &rec.OldRoute); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old route: %w", err)
		}
		if err := json.Unmarshal(newJSON, &rec.NewRoute); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new route: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reroute records: %w", err)
	}
	return out, nil
}

// CountBySessionID returns the number of distinct rerouted vehicles of a session
func (r *RerouteRecordRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reroute_records WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reroute records: %w", err)
	}
	return count, nil
}

func routeOrEmpty(route []string) []string {
	if route == nil {
		return []string{}
	}
	return route
}
