package service

import (
	"context"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type RerouteWriter interface {
	InsertBatch(ctx context.Context, records []domain.RerouteRecord) error
}

type TelemetryWriter interface {
	InsertBatch(ctx context.Context, points []domain.TelemetryPoint) error
}

type TickPublisher interface {
	PublishTick(ctx context.Context, summary domain.TickSummary) error
}

// DefaultFlushSpec is the cron spec of the periodic flush.
const DefaultFlushSpec = "@every 10s"

// Recorder publishes tick summaries immediately and buffers reroute records
// and telemetry points until the next flush. Any writer may be nil.
type Recorder struct {
	reroutes  RerouteWriter
	telemetry TelemetryWriter
	publisher TickPublisher
	log       zerolog.Logger

	mu      sync.Mutex
	records []domain.RerouteRecord
	points  []domain.TelemetryPoint

	cron *cron.Cron
}

func NewRecorder(reroutes RerouteWriter, tel TelemetryWriter, pub TickPublisher, log zerolog.Logger) *Recorder {
	return &Recorder{
		reroutes:  reroutes,
		telemetry: tel,
		publisher: pub,
		log:       log,
	}
}

func (r *Recorder) OnTick(ctx context.Context, summary domain.TickSummary, point domain.TelemetryPoint, records []domain.RerouteRecord) {
	r.mu.Lock()
	if r.telemetry != nil {
		r.points = append(r.points, point)
	}
	if r.reroutes != nil {
		r.records = append(r.records, records...)
	}
	r.mu.Unlock()

	if r.publisher != nil {
		if err := r.publisher.PublishTick(ctx, summary); err != nil {
			r.log.Warn().Err(err).Str("session_id", summary.SessionID).Msg("publish tick summary")
		}
	}
}

// Pending returns the number of buffered records and points.
func (r *Recorder) Pending() (records, points int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), len(r.points)
}

// Flush writes the buffers. Failed batches are put back for the next flush.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	records, points := r.records, r.points
	r.records, r.points = nil, nil
	r.mu.Unlock()

	var firstErr error
	if len(records) > 0 {
		if err := r.reroutes.InsertBatch(ctx, records); err != nil {
			firstErr = err
			r.requeue(records, nil)
		}
	}
	if len(points) > 0 {
		if err := r.telemetry.InsertBatch(ctx, points); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.requeue(nil, points)
		}
	}
	if firstErr != nil {
		r.log.Warn().Err(firstErr).Msg("flush failed, will retry")
		return firstErr
	}
	if len(records)+len(points) > 0 {
		r.log.Debug().Int("records", len(records)).Int("points", len(points)).Msg("flushed")
	}
	return nil
}

func (r *Recorder) requeue(records []domain.RerouteRecord, points []domain.TelemetryPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(records, r.records...)
	r.points = append(points, r.points...)
}

// Start schedules periodic flushes. An empty spec uses DefaultFlushSpec.
func (r *Recorder) Start(spec string) error {
	if spec == "" {
		spec = DefaultFlushSpec
	}
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = r.Flush(ctx)
	})
	if err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.log.Info().Str("spec", spec).Msg("recorder flush scheduled")
	return nil
}

// Stop waits for a running flush, then flushes what is left.
func (r *Recorder) Stop(ctx context.Context) error {
	if r.cron != nil {
		select {
		case <-r.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	return r.Flush(ctx)
}
