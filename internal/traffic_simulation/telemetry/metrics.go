package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide collectors, labelled by session.
type Metrics struct {
	congestedEdges   *prometheus.GaugeVec
	reroutedVehicles *prometheus.GaugeVec
	ticks            *prometheus.CounterVec
	pathFailures     *prometheus.CounterVec
	detections       *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		congestedEdges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "v2i",
			Name:      "congested_edges",
			Help:      "Edges classified congested on the last tick",
		}, []string{"session_id"}),
		reroutedVehicles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "v2i",
			Name:      "rerouted_vehicles",
			Help:      "Distinct vehicles rerouted since the session started",
		}, []string{"session_id"}),
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "v2i",
			Name:      "ticks_total",
			Help:      "Processed simulation ticks",
		}, []string{"session_id"}),
		pathFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "v2i",
			Name:      "path_failures_total",
			Help:      "Reroute attempts that found no path or failed",
		}, []string{"session_id", "reason"}),
		detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "v2i",
			Name:      "sensor_detections_total",
			Help:      "Vehicles slowed down by a roadside sensor",
		}, []string{"session_id"}),
	}
}

// Observe records one processed tick.
func (m *Metrics) Observe(sessionID string, congested, rerouted, noPath, failed, detections int) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(sessionID).Inc()
	m.congestedEdges.WithLabelValues(sessionID).Set(float64(congested))
	m.reroutedVehicles.WithLabelValues(sessionID).Set(float64(rerouted))
	if noPath > 0 {
		m.pathFailures.WithLabelValues(sessionID, "no_path").Add(float64(noPath))
	}
	if failed > 0 {
		m.pathFailures.WithLabelValues(sessionID, "failed").Add(float64(failed))
	}
	if detections > 0 {
		m.detections.WithLabelValues(sessionID).Add(float64(detections))
	}
}

// Forget drops the per-session series once a session ends.
func (m *Metrics) Forget(sessionID string) {
	if m == nil {
		return
	}
	m.congestedEdges.DeleteLabelValues(sessionID)
	m.reroutedVehicles.DeleteLabelValues(sessionID)
	m.ticks.DeleteLabelValues(sessionID)
	m.pathFailures.DeleteLabelValues(sessionID, "no_path")
	m.pathFailures.DeleteLabelValues(sessionID, "failed")
	m.detections.DeleteLabelValues(sessionID)
}
