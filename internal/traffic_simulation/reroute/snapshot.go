package reroute

import (
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/congestion"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// CongestedEdges returns the current congested set, sorted.
func (e *Engine) CongestedEdges() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return congestion.SortedIDs(e.congested)
}

// CongestedCount returns the size of the current congested set.
func (e *Engine) CongestedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.congested)
}

// Vehicles returns a copy of the latest vehicle snapshot.
func (e *Engine) Vehicles() map[string]domain.VehicleState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]domain.VehicleState, len(e.vehicles))
	for id, v := range e.vehicles {
		out[id] = v
	}
	return out
}

// Records returns all reroute records in creation order.
func (e *Engine) Records() []domain.RerouteRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.RerouteRecord, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, copyRecord(e.records[id]))
	}
	return out
}

// Record returns the reroute record of one vehicle.
func (e *Engine) Record(vehicleID string) (domain.RerouteRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.records[vehicleID]
	return copyRecord(r), ok
}

// Latest returns the most recently rerouted vehicle's record.
func (e *Engine) Latest() (domain.RerouteRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.latest == "" {
		return domain.RerouteRecord{}, false
	}
	return copyRecord(e.records[e.latest]), true
}

// ReroutedCount returns the number of distinct rerouted vehicles.
func (e *Engine) ReroutedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// Distribution splits the active vehicle count into rerouted and not
// rerouted, counting every vehicle ever rerouted on the first side.
func (e *Engine) Distribution() (rerouted, notRerouted int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rerouted = len(e.records)
	notRerouted = len(e.vehicles) - rerouted
	if notRerouted < 0 {
		notRerouted = 0
	}
	return rerouted, notRerouted
}

func copyRecord(r domain.RerouteRecord) domain.RerouteRecord {
	r.OldRoute = append([]string(nil), r.OldRoute...)
	r.NewRoute = append([]string(nil), r.NewRoute...)
	return r
}
