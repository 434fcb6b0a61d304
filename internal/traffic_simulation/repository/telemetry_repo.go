package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// TelemetryRepository handles PostgreSQL operations for the per-tick telemetry series
type TelemetryRepository struct {
	db *sql.DB
}

// NewTelemetryRepository creates a new TelemetryRepository
func NewTelemetryRepository(db *sql.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// InsertBatch inserts telemetry points in a single transaction
func (r *TelemetryRepository) InsertBatch(ctx context.Context, points []domain.TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_telemetry (
			session_id, tick, time, congested_edges, rerouted_vehicles
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, tick) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			p.SessionID,
			p.Tick,
			p.Time,
			p.CongestedEdges,
			p.ReroutedVehicles,
		)
		if err != nil {
			return fmt.Errorf("failed to insert telemetry point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBySessionID retrieves the full series of a session
func (r *TelemetryRepository) GetBySessionID(ctx context.Context, sessionID string) ([]domain.TelemetryPoint, error) {
	return r.GetBySessionIDAndTickRange(ctx, sessionID, nil, nil)
}

// GetBySessionIDAndTickRange retrieves a slice of the series, bounds inclusive
func (r *TelemetryRepository) GetBySessionIDAndTickRange(ctx context.Context, sessionID string, fromTick, toTick *int64) ([]domain.TelemetryPoint, error) {
	query := `
		SELECT id, session_id, tick, time, congested_edges, rerouted_vehicles
		FROM session_telemetry
		WHERE session_id = $1
	`
	args := []interface{}{sessionID}
	argIndex := 2

	if fromTick != nil {
		query += fmt.Sprintf(" AND tick >= $%d", argIndex)
		args = append(args, *fromTick)
		argIndex++
	}
	if toTick != nil {
		query += fmt.Sprintf(" AND tick <= $%d", argIndex)
		args = append(args, *toTick)
	}
	query += " ORDER BY tick ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	var points []domain.TelemetryPoint
	for rows.Next() {
		var p domain.TelemetryPoint
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&p.Tick,
			&p.Time,
			&p.CongestedEdges,
			&p.ReroutedVehicles,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telemetry: %w", err)
	}
	return points, nil
}

// CountBySessionID returns the number of recorded ticks of a session
func (r *TelemetryRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_telemetry WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count telemetry: %w", err)
	}
	return count, nil
}
