// Package reroute detects vehicles on congested edges and sends each of them,
// at most once, along the shortest path to the session destination.
package reroute

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RouteController is the part of the simulator the engine commands.
type RouteController interface {
	Route(ctx context.Context, id string) ([]string, error)
	ChangeTarget(ctx context.Context, vehicleID, edgeID string) error
}

// Outcome lists what happened to the candidates of one tick.
type Outcome struct {
	Rerouted []string
	NoPath   []string
	Failed   []string
}

// Engine owns all per-session rerouting state. Process is called from a
// single tick loop; the snapshot accessors may be called from any goroutine
// and always return copies.
type Engine struct {
	sessionID   string
	graph       *topology.Graph
	routes      RouteController
	destination string
	log         zerolog.Logger
	now         func() time.Time

	mu        sync.RWMutex
	congested map[string]struct{}
	vehicles  map[string]domain.VehicleState
	records   map[string]domain.RerouteRecord
	order     []string
	latest    string
}

// NewEngine resolves the destination once and returns an empty engine.
func NewEngine(sessionID string, g *topology.Graph, routes RouteController, policy DestinationPolicy, log zerolog.Logger) (*Engine, error) {
	if policy == nil {
		policy = LastEdgePolicy{}
	}
	dest, err := policy.Destination(g)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sessionID:   sessionID,
		graph:       g,
		routes:      routes,
		destination: dest,
		log:         log.With().Str("session_id", sessionID).Logger(),
		now:         time.Now,
		congested:   make(map[string]struct{}),
		vehicles:    make(map[string]domain.VehicleState),
		records:     make(map[string]domain.RerouteRecord),
	}, nil
}

// Destination returns the fixed destination edge.
func (e *Engine) Destination() string { return e.destination }

// Process replaces the tick state and reroutes every not-yet-rerouted vehicle
// found on a congested edge. Failures local to one vehicle are logged and
// skipped; only domain.ErrSimulatorUnavailable aborts the tick.
func (e *Engine) Process(ctx context.Context, tick int64, vehicles map[string]domain.VehicleState, congested map[string]struct{}) (Outcome, error) {
	e.mu.Lock()
	e.congested = make(map[string]struct{}, len(congested))
	for id := range congested {
		e.congested[id] = struct{}{}
	}
	e.vehicles = make(map[string]domain.VehicleState, len(vehicles))
	for id, v := range vehicles {
		e.vehicles[id] = v
	}
	e.mu.Unlock()

	ids := make([]string, 0, len(vehicles))
	for id := range vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out Outcome
	for _, id := range ids {
		edge := vehicles[id].Edge
		if _, ok := congested[edge]; !ok {
			continue
		}
		if e.hasRecord(id) {
			continue
		}

		err := e.reroute(ctx, tick, id, edge)
		switch {
		case err == nil:
			out.Rerouted = append(out.Rerouted, id)
		case errors.Is(err, domain.ErrSimulatorUnavailable):
			return out, err
		case errors.Is(err, domain.ErrNoPathFound):
			e.log.Debug().Str("vehicle_id", id).Str("edge", edge).Err(err).Msg("no alternate path, will retry")
			out.NoPath = append(out.NoPath, id)
		default:
			e.log.Warn().Str("vehicle_id", id).Str("edge", edge).Err(err).Msg("reroute failed, will retry")
			out.Failed = append(out.Failed, id)
		}
	}
	return out, nil
}

func (e *Engine) reroute(ctx context.Context, tick int64, vehicleID, edge string) error {
	path, err := FindPath(e.graph, edge, e.destination)
	if err != nil {
		return err
	}

	old, err := e.routes.Route(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := e.routes.ChangeTarget(ctx, vehicleID, path[len(path)-1]); err != nil {
		return err
	}

	rec := domain.RerouteRecord{
		ID:        uuid.New().String(),
		SessionID: e.sessionID,
		VehicleID: vehicleID,
		Tick:      tick,
		OldRoute:  old,
		NewRoute:  path,
		CreatedAt: e.now(),
	}

	e.mu.Lock()
	e.records[vehicleID] = rec
	e.order = append(e.order, vehicleID)
	e.latest = vehicleID
	e.mu.Unlock()

	e.log.Info().
		Str("vehicle_id", vehicleID).
		Int64("tick", tick).
		Strs("new_route", path).
		Msg("vehicle rerouted")
	return nil
}

func (e *Engine) hasRecord(vehicleID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.records[vehicleID]
	return ok
}
