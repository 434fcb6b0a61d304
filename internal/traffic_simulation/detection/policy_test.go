package detection_test

import (
	"context"
	"testing"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/detection"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator/simtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_TargetSpeed(t *testing.T) {
	p := detection.NewPolicy(nil, zerolog.Nop())

	tests := []struct {
		speed, want float64
	}{
		{20, 16},
		{10, 8},
		{6, 5},
		{2, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, p.TargetSpeed(tt.speed), 1e-9)
	}
}

func TestPolicy_Match(t *testing.T) {
	p := detection.NewPolicy([]domain.Sensor{
		{ID: "rsu_0", Lane: "a_0", Position: 50},
		{ID: "rsu_1", Lane: "b_0", Position: 10},
	}, zerolog.Nop())
	assert.Equal(t, 2, p.Sensors())

	s, d, ok := p.Match(simulator.Vehicle{ID: "v", Lane: "a_0", LanePosition: 70})
	require.True(t, ok)
	assert.Equal(t, "rsu_0", s.ID)
	assert.InDelta(t, 20, d, 1e-9)

	_, _, ok = p.Match(simulator.Vehicle{ID: "v", Lane: "a_0", LanePosition: 80})
	assert.False(t, ok, "range is exclusive")

	_, _, ok = p.Match(simulator.Vehicle{ID: "v", Lane: "c_0", LanePosition: 50})
	assert.False(t, ok)
}

func TestPolicy_Apply(t *testing.T) {
	ctx := context.Background()
	sim := simtest.New()
	near := simulator.Vehicle{ID: "near", Lane: "a_0", Edge: "a", LanePosition: 45, Speed: 12}
	far := simulator.Vehicle{ID: "far", Lane: "a_0", Edge: "a", LanePosition: 200, Speed: 12}
	sim.Put(near, nil, 0)
	sim.Put(far, nil, 0)

	p := detection.NewPolicy([]domain.Sensor{{ID: "rsu_0", Lane: "a_0", Position: 50}}, zerolog.Nop())

	got, err := p.Apply(ctx, []simulator.Vehicle{far, near}, sim)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].VehicleID)
	assert.InDelta(t, 9.6, got[0].NewSpeed, 1e-9)
	require.Len(t, sim.SpeedChanges["near"], 1)
	assert.InDelta(t, 9.6, sim.SpeedChanges["near"][0], 1e-9)
	assert.Empty(t, sim.SpeedChanges["far"])
}

func TestPolicy_ApplySkipsUnknownVehicle(t *testing.T) {
	sim := simtest.New()
	p := detection.NewPolicy([]domain.Sensor{{ID: "rsu_0", Lane: "a_0", Position: 50}}, zerolog.Nop())

	got, err := p.Apply(context.Background(), []simulator.Vehicle{{ID: "ghost", Lane: "a_0", LanePosition: 50}}, sim)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPolicy_ApplySimulatorDown(t *testing.T) {
	sim := simtest.New()
	v := simulator.Vehicle{ID: "v", Lane: "a_0", LanePosition: 50, Speed: 10}
	sim.Put(v, nil, 0)
	sim.SetDown(true)
	p := detection.NewPolicy([]domain.Sensor{{ID: "rsu_0", Lane: "a_0", Position: 50}}, zerolog.Nop())

	_, err := p.Apply(context.Background(), []simulator.Vehicle{v}, sim)
	assert.ErrorIs(t, err, domain.ErrSimulatorUnavailable)
}
