package telemetry

import (
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_RecordAppends(t *testing.T) {
	a := NewAggregator("s1")

	p := a.Record(1, 3, 0)
	assert.Equal(t, "s1", p.SessionID)
	assert.Equal(t, int64(1), p.Tick)
	a.Record(2, 1, 2)

	s := a.Series()
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{3, 1}, s.Congested)
	assert.Equal(t, []int{0, 2}, s.Rerouted)
	assert.Equal(t, []int64{1, 2}, s.Ticks)

	points := a.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 2, points[1].ReroutedVehicles)
}

func TestAggregator_SeriesIsACopy(t *testing.T) {
	a := NewAggregator("s1")
	a.Record(1, 4, 1)

	s := a.Series()
	s.Congested[0] = 99
	s.Congested = append(s.Congested, 7)

	again := a.Series()
	assert.Equal(t, []int{4}, again.Congested)
}

func TestAggregator_ReroutedSeriesNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := NewAggregator("s1")

	cumulative := 0
	for tick := int64(1); tick <= 500; tick++ {
		cumulative += rng.Intn(3)
		a.Record(tick, rng.Intn(10), cumulative)
	}

	r := a.Series().Rerouted
	for i := 1; i < len(r); i++ {
		require.GreaterOrEqual(t, r[i], r[i-1])
	}
}

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe("s1", 2, 1, 1, 0, 3)
	m.Observe("s1", 4, 2, 0, 0, 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ticks.WithLabelValues("s1")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.congestedEdges.WithLabelValues("s1")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.reroutedVehicles.WithLabelValues("s1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pathFailures.WithLabelValues("s1", "no_path")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.detections.WithLabelValues("s1")))

	m.Forget("s1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.ticks))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("s1", 1, 1, 1, 1, 1)
		m.Forget("s1")
	})
}
