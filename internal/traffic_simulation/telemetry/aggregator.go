// Package telemetry accumulates the per-tick congestion and rerouting series
// of a session and mirrors them into Prometheus.
package telemetry

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// Series is a copy of the two parallel sequences, one entry per tick.
type Series struct {
	Ticks     []int64     `json:"ticks"`
	Times     []time.Time `json:"times"`
	Congested []int       `json:"congested_edges"`
	Rerouted  []int       `json:"rerouted_vehicles"`
}

// Len returns the number of recorded ticks.
func (s Series) Len() int { return len(s.Congested) }

// Aggregator is append-only. Record is called by the tick loop, the readers
// may run concurrently with it.
type Aggregator struct {
	sessionID string
	now       func() time.Time

	mu     sync.RWMutex
	series Series
}

func NewAggregator(sessionID string) *Aggregator {
	return &Aggregator{sessionID: sessionID, now: time.Now}
}

// Record appends one tick and returns the resulting point.
func (a *Aggregator) Record(tick int64, congested, rerouted int) domain.TelemetryPoint {
	ts := a.now()

	a.mu.Lock()
	a.series.Ticks = append(a.series.Ticks, tick)
	a.series.Times = append(a.series.Times, ts)
	a.series.Congested = append(a.series.Congested, congested)
	a.series.Rerouted = append(a.series.Rerouted, rerouted)
	a.mu.Unlock()

	return domain.TelemetryPoint{
		SessionID:        a.sessionID,
		Tick:             tick,
		Time:             ts,
		CongestedEdges:   congested,
		ReroutedVehicles: rerouted,
	}
}

// Series returns a copy of everything recorded so far.
func (a *Aggregator) Series() Series {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Series{
		Ticks:     append([]int64(nil), a.series.Ticks...),
		Times:     append([]time.Time(nil), a.series.Times...),
		Congested: append([]int(nil), a.series.Congested...),
		Rerouted:  append([]int(nil), a.series.Rerouted...),
	}
}

// Points returns the series as telemetry points.
func (a *Aggregator) Points() []domain.TelemetryPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.TelemetryPoint, len(a.series.Ticks))
	for i := range a.series.Ticks {
		out[i] = domain.TelemetryPoint{
			SessionID:        a.sessionID,
			Tick:             a.series.Ticks[i],
			Time:             a.series.Times[i],
			CongestedEdges:   a.series.Congested[i],
			ReroutedVehicles: a.series.Rerouted[i],
		}
	}
	return out
}
