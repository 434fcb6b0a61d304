package domain

import "time"

// Session is one isolated congestion-detection run against a simulator
type Session struct {
	SessionID        string                 `json:"session_id"`
	Network          string                 `json:"network"`
	Status           string                 `json:"status"` // pending, running, stopped, failed
	DestinationEdge  string                 `json:"destination_edge,omitempty"`
	DetectionEnabled bool                   `json:"detection_enabled"`
	Ticks            int64                  `json:"ticks"`
	Error            string                 `json:"error,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	StoppedAt        *time.Time             `json:"stopped_at,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Session status constants
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
)

// CreateSessionRequest represents data needed to create a new session
type CreateSessionRequest struct {
	Network          string
	DestinationEdge  string
	DetectionEnabled bool
	Metadata         map[string]interface{}
}

// UpdateSessionRequest represents data for updating a session
type UpdateSessionRequest struct {
	Status   *string
	Ticks    *int64
	Error    *string
	Metadata map[string]interface{}
}

// VehicleState is one entry of the per-tick vehicle snapshot
type VehicleState struct {
	Speed float64 `json:"speed"`
	Edge  string  `json:"edge"`
}

// RerouteRecord is the one-time log of a vehicle's route override.
type RerouteRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	VehicleID string    `json:"vehicle_id"`
	Tick      int64     `json:"tick"`
	OldRoute  []string  `json:"old_route"`
	NewRoute  []string  `json:"new_route"`
	CreatedAt time.Time `json:"created_at"`
}

// TelemetryPoint is one tick of the telemetry series
type TelemetryPoint struct {
	ID               int64     `json:"id,omitempty"`
	SessionID        string    `json:"session_id"`
	Tick             int64     `json:"tick"`
	Time             time.Time `json:"time"`
	CongestedEdges   int       `json:"congested_edges"`
	ReroutedVehicles int       `json:"rerouted_vehicles"`
}

// Sensor is a roadside detector placed on a lane at an offset from the lane start
type Sensor struct {
	ID       string  `json:"id"`
	Lane     string  `json:"lane"`
	Position float64 `json:"pos"`
}

// TickSummary is published after every processed tick
type TickSummary struct {
	SessionID        string    `json:"session_id"`
	Tick             int64     `json:"tick"`
	CongestedEdges   int       `json:"congested_edges"`
	ReroutedVehicles int       `json:"rerouted_vehicles"`
	NewReroutes      []string  `json:"new_reroutes,omitempty"`
	Detections       int       `json:"detections,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
