// Package simulator describes the external traffic simulator the engine talks
// to. Implementations report domain.ErrSimulatorUnavailable (wrapped) when the
// simulator connection is lost; callers treat that as fatal for the session.
package simulator

import (
	"context"

	"github.com/paulmach/orb"
)

// Vehicle is the per-tick state of one active vehicle.
type Vehicle struct {
	ID           string    `json:"id"`
	Speed        float64   `json:"speed"`
	Edge         string    `json:"edge"`
	Lane         string    `json:"lane"`
	LanePosition float64   `json:"lane_position"`
	Position     orb.Point `json:"position"`
}

// EdgeStats is the last-step aggregate of one edge.
type EdgeStats struct {
	VehicleCount int      `json:"vehicle_count"`
	MeanSpeed    float64  `json:"mean_speed"`
	VehicleIDs   []string `json:"vehicle_ids"`
}

// Simulator is the minimum capability set required from the simulator.
type Simulator interface {
	Start(ctx context.Context) error
	Step(ctx context.Context) error
	Close(ctx context.Context) error

	VehicleIDs(ctx context.Context) ([]string, error)
	Vehicle(ctx context.Context, id string) (Vehicle, error)
	Route(ctx context.Context, id string) ([]string, error)
	WaitingTime(ctx context.Context, id string) (float64, error)
	EdgeStats(ctx context.Context, edgeID string) (EdgeStats, error)

	ChangeTarget(ctx context.Context, vehicleID, edgeID string) error
	SetSpeed(ctx context.Context, vehicleID string, speed float64) error
}
