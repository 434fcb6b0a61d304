package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/congestion"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/detection"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/reroute"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/telemetry"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TickSink receives the outcome of every processed tick.
type TickSink interface {
	OnTick(ctx context.Context, summary domain.TickSummary, point domain.TelemetryPoint, records []domain.RerouteRecord)
}

// RunnerOptions configures a Runner. Zero values fall back to defaults.
type RunnerOptions struct {
	Thresholds  congestion.Thresholds
	Destination reroute.DestinationPolicy
	Detection   *detection.Policy
	Metrics     *telemetry.Metrics
	Sink        TickSink
	Logger      zerolog.Logger
}

// Runner drives one session: each tick steps the simulator, classifies edges,
// reroutes, applies sensor detection and records telemetry, in that order and
// to completion before the next tick.
type Runner struct {
	sessionID  string
	sim        simulator.Simulator
	graph      *topology.Graph
	engine     *reroute.Engine
	aggregator *telemetry.Aggregator
	thresholds congestion.Thresholds
	detection  *detection.Policy
	metrics    *telemetry.Metrics
	sink       TickSink
	log        zerolog.Logger

	tick atomic.Int64

	mu       sync.RWMutex
	statuses map[string]congestion.Status
}

func NewRunner(sessionID string, sim simulator.Simulator, g *topology.Graph, opts RunnerOptions) (*Runner, error) {
	log := opts.Logger.With().Str("session_id", sessionID).Logger()

	engine, err := reroute.NewEngine(sessionID, g, sim, opts.Destination, log)
	if err != nil {
		return nil, err
	}
	th := opts.Thresholds
	if th == (congestion.Thresholds{}) {
		th = congestion.DefaultThresholds()
	}
	return &Runner{
		sessionID:  sessionID,
		sim:        sim,
		graph:      g,
		engine:     engine,
		aggregator: telemetry.NewAggregator(sessionID),
		thresholds: th,
		detection:  opts.Detection,
		metrics:    opts.Metrics,
		sink:       opts.Sink,
		log:        log,
		statuses:   make(map[string]congestion.Status),
	}, nil
}

func (r *Runner) SessionID() string                 { return r.sessionID }
func (r *Runner) Engine() *reroute.Engine           { return r.engine }
func (r *Runner) Aggregator() *telemetry.Aggregator { return r.aggregator }

// Ticks returns the number of processed ticks.
func (r *Runner) Ticks() int64 { return r.tick.Load() }

// EdgeStatuses returns the display status of every edge as of the last tick.
func (r *Runner) EdgeStatuses() map[string]congestion.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]congestion.Status, len(r.statuses))
	for id, s := range r.statuses {
		out[id] = s
	}
	return out
}

// Run starts the simulator and processes ticks until ctx is done, maxTicks
// is reached (0 means unbounded) or a tick fails. The limiter paces ticks.
func (r *Runner) Run(ctx context.Context, limiter *rate.Limiter, maxTicks int64) error {
	if err := r.sim.Start(ctx); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.sim.Close(closeCtx); err != nil {
			r.log.Warn().Err(err).Msg("close simulator")
		}
	}()

	for maxTicks <= 0 || r.tick.Load() < maxTicks {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if _, err := r.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// Tick runs one complete tick. Only simulator-level failures are returned.
func (r *Runner) Tick(ctx context.Context) (domain.TickSummary, error) {
	if err := r.sim.Step(ctx); err != nil {
		return domain.TickSummary{}, r.fatal("step", err)
	}
	tick := r.tick.Add(1)

	obs, err := r.observeEdges(ctx)
	if err != nil {
		return domain.TickSummary{}, r.fatal("edge stats", err)
	}
	congested := r.thresholds.Classify(obs)

	snapshot, vehicles, err := r.observeVehicles(ctx)
	if err != nil {
		return domain.TickSummary{}, r.fatal("vehicles", err)
	}

	outcome, err := r.engine.Process(ctx, tick, snapshot, congested)
	if err != nil {
		return domain.TickSummary{}, r.fatal("reroute", err)
	}

	var detections int
	if r.detection != nil {
		found, err := r.detection.Apply(ctx, vehicles, r.sim)
		if err != nil {
			return domain.TickSummary{}, r.fatal("detection", err)
		}
		detections = len(found)
	}

	rerouted := r.engine.ReroutedCount()
	point := r.aggregator.Record(tick, len(congested), rerouted)
	r.metrics.Observe(r.sessionID, len(congested), rerouted, len(outcome.NoPath), len(outcome.Failed), detections)

	summary := domain.TickSummary{
		SessionID:        r.sessionID,
		Tick:             tick,
		CongestedEdges:   len(congested),
		ReroutedVehicles: rerouted,
		NewReroutes:      outcome.Rerouted,
		Detections:       detections,
		Timestamp:        point.Time,
	}

	if r.sink != nil {
		var records []domain.RerouteRecord
		for _, id := range outcome.Rerouted {
			if rec, ok := r.engine.Record(id); ok {
				records = append(records, rec)
			}
		}
		r.sink.OnTick(ctx, summary, point, records)
	}

	r.log.Debug().
		Int64("tick", tick).
		Int("vehicles", len(snapshot)).
		Int("congested", len(congested)).
		Int("rerouted", rerouted).
		Msg("tick processed")
	return summary, nil
}

// observeEdges reads the aggregate of every edge. An edge that cannot be read
// is marked unknown and left out of classification.
func (r *Runner) observeEdges(ctx context.Context) ([]congestion.EdgeObservation, error) {
	ids := r.graph.EdgeIDs()
	obs := make([]congestion.EdgeObservation, 0, len(ids))
	statuses := make(map[string]congestion.Status, len(ids))

	for _, id := range ids {
		st, err := r.sim.EdgeStats(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSimulatorUnavailable) {
				return nil, err
			}
			r.log.Warn().Err(err).Str("edge", id).Msg("edge stats unavailable")
			statuses[id] = congestion.StatusUnknown
			continue
		}

		o := congestion.EdgeObservation{
			EdgeID:       id,
			VehicleCount: st.VehicleCount,
			MeanSpeed:    st.MeanSpeed,
		}
		for _, vid := range st.VehicleIDs {
			w, err := r.sim.WaitingTime(ctx, vid)
			if err != nil {
				if errors.Is(err, domain.ErrSimulatorUnavailable) {
					return nil, err
				}
				continue
			}
			o.WaitingTimes = append(o.WaitingTimes, w)
		}
		obs = append(obs, o)
		statuses[id] = r.thresholds.Status(o)
	}

	r.mu.Lock()
	r.statuses = statuses
	r.mu.Unlock()
	return obs, nil
}

func (r *Runner) observeVehicles(ctx context.Context) (map[string]domain.VehicleState, []simulator.Vehicle, error) {
	ids, err := r.sim.VehicleIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	snapshot := make(map[string]domain.VehicleState, len(ids))
	vehicles := make([]simulator.Vehicle, 0, len(ids))
	for _, id := range ids {
		v, err := r.sim.Vehicle(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSimulatorUnavailable) {
				return nil, nil, err
			}
			r.log.Warn().Err(err).Str("vehicle_id", id).Msg("vehicle state unavailable")
			continue
		}
		snapshot[id] = domain.VehicleState{Speed: v.Speed, Edge: v.Edge}
		vehicles = append(vehicles, v)
	}
	return snapshot, vehicles, nil
}

func (r *Runner) fatal(stage string, err error) error {
	r.log.Error().Err(err).Str("stage", stage).Int64("tick", r.tick.Load()).Msg("tick aborted")
	return fmt.Errorf("tick %d %s: %w", r.tick.Load(), stage, err)
}
