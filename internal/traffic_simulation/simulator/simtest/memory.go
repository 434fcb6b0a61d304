// Package simtest provides an in-memory simulator for tests.
package simtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
)

// Simulator is a scripted simulator. Tests mutate vehicles between steps
// through Put/Remove or an OnStep hook.
type Simulator struct {
	mu sync.Mutex

	vehicles map[string]simulator.Vehicle
	routes   map[string][]string
	waiting  map[string]float64

	// Down makes every call fail with domain.ErrSimulatorUnavailable.
	Down bool
	// OnStep runs inside Step with the new step number.
	OnStep func(s *Simulator, step int)

	Steps         int
	Started       bool
	Closed        bool
	TargetChanges map[string][]string
	SpeedChanges  map[string][]float64
	RouteErr      map[string]error
}

// New returns an empty simulator.
func New() *Simulator {
	return &Simulator{
		vehicles:      make(map[string]simulator.Vehicle),
		routes:        make(map[string][]string),
		waiting:       make(map[string]float64),
		TargetChanges: make(map[string][]string),
		SpeedChanges:  make(map[string][]float64),
		RouteErr:      make(map[string]error),
	}
}

// Put adds or replaces a vehicle with its current route and waiting time.
func (s *Simulator) Put(v simulator.Vehicle, route []string, waiting float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
	s.routes[v.ID] = route
	s.waiting[v.ID] = waiting
}

// Remove drops a vehicle.
func (s *Simulator) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vehicles, id)
}

// SetDown toggles the unavailable state.
func (s *Simulator) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Down = down
}

// Targets returns the target changes issued for a vehicle.
func (s *Simulator) Targets(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.TargetChanges[id]...)
}

func (s *Simulator) check() error {
	if s.Down {
		return fmt.Errorf("%w: connection refused", domain.ErrSimulatorUnavailable)
	}
	return nil
}

func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.Started = true
	return nil
}

func (s *Simulator) Step(ctx context.Context) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.Steps++
	step, hook := s.Steps, s.OnStep
	s.mu.Unlock()

	if hook != nil {
		hook(s, step)
	}
	return nil
}

// IsClosed reports whether Close was called.
func (s *Simulator) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closed
}

func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

func (s *Simulator) VehicleIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.vehicles))
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Simulator) Vehicle(ctx context.Context, id string) (simulator.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return simulator.Vehicle{}, err
	}
	v, ok := s.vehicles[id]
	if !ok {
		return simulator.Vehicle{}, fmt.Errorf("vehicle %s not found", id)
	}
	return v, nil
}

func (s *Simulator) Route(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := s.RouteErr[id]; err != nil {
		return nil, err
	}
	return append([]string(nil), s.routes[id]...), nil
}

func (s *Simulator) WaitingTime(ctx context.Context, id string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.waiting[id], nil
}

func (s *Simulator) EdgeStats(ctx context.Context, edgeID string) (simulator.EdgeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return simulator.EdgeStats{}, err
	}
	var st simulator.EdgeStats
	var sum float64
	for id, v := range s.vehicles {
		if v.Edge == edgeID {
			st.VehicleIDs = append(st.VehicleIDs, id)
			sum += v.Speed
		}
	}
	sort.Strings(st.VehicleIDs)
	st.VehicleCount = len(st.VehicleIDs)
	if st.VehicleCount > 0 {
		st.MeanSpeed = sum / float64(st.VehicleCount)
	}
	return st, nil
}

func (s *Simulator) ChangeTarget(ctx context.Context, vehicleID, edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.vehicles[vehicleID]; !ok {
		return fmt.Errorf("vehicle %s not found", vehicleID)
	}
	s.TargetChanges[vehicleID] = append(s.TargetChanges[vehicleID], edgeID)
	return nil
}

func (s *Simulator) SetSpeed(ctx context.Context, vehicleID string, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("vehicle %s not found", vehicleID)
	}
	v.Speed = speed
	s.vehicles[vehicleID] = v
	s.SpeedChanges[vehicleID] = append(s.SpeedChanges[vehicleID], speed)
	return nil
}

var _ simulator.Simulator = (*Simulator)(nil)
