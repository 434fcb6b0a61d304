package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/congestion"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/detection"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/reroute"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrSessionNotRunning is returned when a live view is requested for a
// session that has no runner in this process.
var ErrSessionNotRunning = errors.New("simulation session not running")

// SimulatorFactory opens a simulator connection for a session.
type SimulatorFactory func(ctx context.Context, session *domain.Session) (simulator.Simulator, error)

type ManagerOptions struct {
	TickInterval time.Duration
	MaxTicks     int64
	Thresholds   congestion.Thresholds
	Metrics      *telemetry.Metrics
	Sink         TickSink

	// Destination applies to sessions created without a destination edge.
	// Nil means reroute.LastEdgePolicy.
	Destination reroute.DestinationPolicy
}

type running struct {
	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns one Runner per active session. Sessions share nothing but
// the read-only network graphs.
type Manager struct {
	sessions   *SessionService
	networks   *NetworkCatalog
	placements *PlacementService
	newSim     SimulatorFactory
	opts       ManagerOptions
	log        zerolog.Logger

	mu      sync.Mutex
	runners map[string]*running
}

func NewManager(sessions *SessionService, networks *NetworkCatalog, placements *PlacementService, newSim SimulatorFactory, opts ManagerOptions, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:   sessions,
		networks:   networks,
		placements: placements,
		newSim:     newSim,
		opts:       opts,
		log:        log,
		runners:    make(map[string]*running),
	}
}

// Start builds a runner for the session and drives it in the background.
// The session moves to running, and to stopped or failed when the loop ends.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.runners[sessionID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// A session runs once. Its reroute records and tick numbers are never reset.
	if session.Status != domain.StatusPending {
		return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidStatus, sessionID, session.Status)
	}

	g, ok := m.networks.Get(session.Network)
	if !ok {
		return fmt.Errorf("%w: unknown network %q", domain.ErrLoad, session.Network)
	}

	var policy *detection.Policy
	if session.DetectionEnabled && m.placements != nil {
		sensors, err := m.placements.Sensors(ctx, session.Network)
		if err != nil {
			return err
		}
		policy = detection.NewPolicy(sensors, m.log.With().Str("session_id", sessionID).Logger())
		if policy.Sensors() == 0 {
			m.log.Warn().Str("session_id", sessionID).Msg("detection enabled but no sensors placed")
		}
	}

	sim, err := m.newSim(ctx, session)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSimulatorUnavailable, err)
	}

	dest := m.opts.Destination
	if session.DestinationEdge != "" {
		dest = reroute.FixedEdgePolicy{EdgeID: session.DestinationEdge}
	}
	runner, err := NewRunner(sessionID, sim, g, RunnerOptions{
		Thresholds:  m.opts.Thresholds,
		Destination: dest,
		Detection:   policy,
		Metrics:     m.opts.Metrics,
		Sink:        m.opts.Sink,
		Logger:      m.log,
	})
	if err != nil {
		m.closeUnused(sessionID, sim)
		return err
	}

	m.mu.Lock()
	if _, ok := m.runners[sessionID]; ok {
		m.mu.Unlock()
		m.closeUnused(sessionID, sim)
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	rs := &running{runner: runner, cancel: cancel, done: make(chan struct{})}
	m.runners[sessionID] = rs
	m.mu.Unlock()

	status := domain.StatusRunning
	if _, err := m.sessions.UpdateSession(ctx, sessionID, &domain.UpdateSessionRequest{Status: &status}); err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("mark session running")
	}

	go m.drive(runCtx, rs)
	m.log.Info().Str("session_id", sessionID).Str("destination", runner.Engine().Destination()).Msg("session started")
	return nil
}

// closeUnused releases a simulator connection that never got a runner.
func (m *Manager) closeUnused(sessionID string, sim simulator.Simulator) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sim.Close(ctx); err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("close unused simulator")
	}
}

func (m *Manager) drive(ctx context.Context, rs *running) {
	defer close(rs.done)

	var limiter *rate.Limiter
	if m.opts.TickInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(m.opts.TickInterval), 1)
	}
	runErr := rs.runner.Run(ctx, limiter, m.opts.MaxTicks)

	id := rs.runner.SessionID()
	m.mu.Lock()
	delete(m.runners, id)
	m.mu.Unlock()
	m.opts.Metrics.Forget(id)

	status := domain.StatusStopped
	req := &domain.UpdateSessionRequest{Status: &status}
	ticks := rs.runner.Ticks()
	req.Ticks = &ticks
	if runErr != nil {
		status = domain.StatusFailed
		msg := runErr.Error()
		req.Error = &msg
		m.log.Error().Err(runErr).Str("session_id", id).Msg("session failed")
	} else {
		m.log.Info().Str("session_id", id).Int64("ticks", ticks).Msg("session stopped")
	}

	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.sessions.UpdateSession(uctx, id, req); err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("record final session status")
	}
}

// Stop cancels a running session and waits for its loop to exit.
func (m *Manager) Stop(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	rs, ok := m.runners[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	rs.cancel()
	select {
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner returns the live runner of a session.
func (m *Manager) Runner(sessionID string) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.runners[sessionID]
	if !ok {
		return nil, ErrSessionNotRunning
	}
	return rs.runner, nil
}

// Shutdown stops every running session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.runners))
	for id := range m.runners {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
