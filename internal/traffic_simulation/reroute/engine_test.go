package reroute_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/reroute"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator/simtest"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corridor is A -E-> B -F-> C -D-> X plus an isolated P -iso-> Q.
// D is the last edge and therefore the default destination.
func corridor(t *testing.T) *topology.Graph {
	t.Helper()
	yn := topology.YNetwork{
		Nodes: []topology.YNode{
			{ID: "A", X: 0, Y: 0},
			{ID: "B", X: 100, Y: 0},
			{ID: "C", X: 200, Y: 0},
			{ID: "X", X: 300, Y: 0},
			{ID: "P", X: 0, Y: 500},
			{ID: "Q", X: 100, Y: 500},
		},
		Edges: []topology.YEdge{
			{ID: "E", From: "A", To: "B"},
			{ID: "F", From: "B", To: "C"},
			{ID: "iso", From: "P", To: "Q"},
			{ID: "D", From: "C", To: "X"},
		},
	}
	g, err := topology.FromYAML(yn)
	require.NoError(t, err)
	return g
}

func newEngine(t *testing.T, g *topology.Graph, sim *simtest.Simulator) *reroute.Engine {
	t.Helper()
	e, err := reroute.NewEngine("s1", g, sim, reroute.LastEdgePolicy{}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func congestedSet(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestFindPath(t *testing.T) {
	g := corridor(t)

	path, err := reroute.FindPath(g, "E", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "F", "D"}, path)

	path, err = reroute.FindPath(g, "D", "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, path)

	_, err = reroute.FindPath(g, "iso", "D")
	assert.ErrorIs(t, err, domain.ErrNoPathFound)

	_, err = reroute.FindPath(g, "nope", "D")
	assert.ErrorIs(t, err, domain.ErrNoPathFound)
}

func TestPolicyFor(t *testing.T) {
	g := corridor(t)

	tests := []struct {
		name    string
		policy  string
		edge    string
		want    string
		wantErr bool
	}{
		{name: "default", want: "D"},
		{name: "last edge", policy: reroute.PolicyLastEdge, want: "D"},
		{name: "last edge ignores edge", policy: reroute.PolicyLastEdge, edge: "F", want: "D"},
		{name: "fixed", policy: reroute.PolicyFixed, edge: "F", want: "F"},
		{name: "fixed without edge", policy: reroute.PolicyFixed, wantErr: true},
		{name: "unknown", policy: "random", edge: "F", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := reroute.PolicyFor(tt.policy, tt.edge)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			dest, err := p.Destination(g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dest)
		})
	}
}

func TestDestinationPolicies(t *testing.T) {
	g := corridor(t)

	dest, err := reroute.LastEdgePolicy{}.Destination(g)
	require.NoError(t, err)
	assert.Equal(t, "D", dest)

	dest, err = reroute.FixedEdgePolicy{EdgeID: "F"}.Destination(g)
	require.NoError(t, err)
	assert.Equal(t, "F", dest)

	_, err = reroute.FixedEdgePolicy{EdgeID: "missing"}.Destination(g)
	assert.ErrorIs(t, err, domain.ErrLoad)

	_, err = reroute.LastEdgePolicy{}.Destination(topology.New())
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestEngine_ReroutesOncePerVehicle(t *testing.T) {
	ctx := context.Background()
	g := corridor(t)
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "V", Edge: "E", Speed: 1}, []string{"E", "F"}, 20)
	e := newEngine(t, g, sim)

	vehicles := map[string]domain.VehicleState{"V": {Speed: 1, Edge: "E"}}

	out, err := e.Process(ctx, 1, vehicles, congestedSet("E"))
	require.NoError(t, err)
	assert.Equal(t, []string{"V"}, out.Rerouted)

	rec, ok := e.Record("V")
	require.True(t, ok)
	assert.Equal(t, []string{"E", "F", "D"}, rec.NewRoute)
	assert.Equal(t, []string{"E", "F"}, rec.OldRoute)
	assert.Equal(t, int64(1), rec.Tick)
	assert.Equal(t, "s1", rec.SessionID)
	assert.NotEmpty(t, rec.ID)

	// V is still on the congested edge one tick later.
	out, err = e.Process(ctx, 2, vehicles, congestedSet("E"))
	require.NoError(t, err)
	assert.Empty(t, out.Rerouted)

	assert.Len(t, e.Records(), 1)
	assert.Equal(t, 1, e.ReroutedCount())
	assert.Equal(t, []string{"D"}, sim.Targets("V"))

	latest, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, "V", latest.VehicleID)
}

func TestEngine_DisconnectedLeavesVehicleUntouched(t *testing.T) {
	ctx := context.Background()
	g := corridor(t)
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "W", Edge: "iso"}, []string{"iso"}, 30)
	e := newEngine(t, g, sim)

	out, err := e.Process(ctx, 1, map[string]domain.VehicleState{"W": {Edge: "iso"}}, congestedSet("iso"))
	require.NoError(t, err)
	assert.Equal(t, []string{"W"}, out.NoPath)
	assert.Empty(t, out.Rerouted)

	_, ok := e.Record("W")
	assert.False(t, ok)
	assert.Empty(t, sim.Targets("W"))
	assert.Equal(t, 0, e.ReroutedCount())
}

func TestEngine_IgnoresFreeEdges(t *testing.T) {
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "V", Edge: "F"}, nil, 0)
	e := newEngine(t, corridor(t), sim)

	out, err := e.Process(context.Background(), 1, map[string]domain.VehicleState{"V": {Edge: "F"}}, congestedSet("E"))
	require.NoError(t, err)
	assert.Empty(t, out.Rerouted)
	assert.Equal(t, []string{"E"}, e.CongestedEdges())
	assert.Equal(t, 1, e.CongestedCount())
}

func TestEngine_FailedVehicleIsRetried(t *testing.T) {
	ctx := context.Background()
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "V", Edge: "E"}, []string{"E"}, 0)
	sim.RouteErr["V"] = errors.New("vehicle left the network")
	e := newEngine(t, corridor(t), sim)
	vehicles := map[string]domain.VehicleState{"V": {Edge: "E"}}

	out, err := e.Process(ctx, 1, vehicles, congestedSet("E"))
	require.NoError(t, err)
	assert.Equal(t, []string{"V"}, out.Failed)
	assert.Empty(t, sim.Targets("V"))

	delete(sim.RouteErr, "V")
	out, err = e.Process(ctx, 2, vehicles, congestedSet("E"))
	require.NoError(t, err)
	assert.Equal(t, []string{"V"}, out.Rerouted)
	rec, ok := e.Record("V")
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.Tick)
}

func TestEngine_SimulatorUnavailableAbortsTick(t *testing.T) {
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "V", Edge: "E"}, []string{"E"}, 0)
	sim.SetDown(true)
	e := newEngine(t, corridor(t), sim)

	_, err := e.Process(context.Background(), 1, map[string]domain.VehicleState{"V": {Edge: "E"}}, congestedSet("E"))
	assert.ErrorIs(t, err, domain.ErrSimulatorUnavailable)
	assert.Equal(t, 0, e.ReroutedCount())
}

func TestEngine_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	sim := simtest.New()
	sim.Put(simulator.Vehicle{ID: "V", Edge: "E"}, []string{"E"}, 0)
	e := newEngine(t, corridor(t), sim)

	vehicles := map[string]domain.VehicleState{"V": {Edge: "E"}}
	_, err := e.Process(ctx, 1, vehicles, congestedSet("E"))
	require.NoError(t, err)

	vehicles["other"] = domain.VehicleState{Edge: "F"}
	assert.Len(t, e.Vehicles(), 1)

	recs := e.Records()
	recs[0].NewRoute[0] = "mutated"
	rec, _ := e.Record("V")
	assert.Equal(t, "E", rec.NewRoute[0])
}

func TestEngine_Distribution(t *testing.T) {
	ctx := context.Background()
	sim := simtest.New()
	for _, id := range []string{"a", "b", "c"} {
		sim.Put(simulator.Vehicle{ID: id, Edge: "E"}, nil, 0)
	}
	e := newEngine(t, corridor(t), sim)

	_, err := e.Process(ctx, 1, map[string]domain.VehicleState{
		"a": {Edge: "E"}, "b": {Edge: "F"}, "c": {Edge: "F"},
	}, congestedSet("E"))
	require.NoError(t, err)

	r, n := e.Distribution()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, n)

	// Rerouted vehicles that left the network still count.
	_, err = e.Process(ctx, 2, map[string]domain.VehicleState{}, congestedSet())
	require.NoError(t, err)
	r, n = e.Distribution()
	assert.Equal(t, 1, r)
	assert.Equal(t, 0, n)
}

func TestEngine_RandomTicksNeverDuplicate(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	edges := []string{"E", "F", "iso", "D"}

	for round := 0; round < 50; round++ {
		sim := simtest.New()
		e := newEngine(t, corridor(t), sim)

		prevCount := 0
		for tick := int64(1); tick <= 20; tick++ {
			vehicles := make(map[string]domain.VehicleState)
			for i := 0; i < 8; i++ {
				if rng.Intn(3) == 0 {
					continue
				}
				id := fmt.Sprintf("v%d", i)
				edge := edges[rng.Intn(len(edges))]
				vehicles[id] = domain.VehicleState{Edge: edge}
				sim.Put(simulator.Vehicle{ID: id, Edge: edge}, []string{edge}, 0)
			}
			congested := make(map[string]struct{})
			for _, edge := range edges {
				if rng.Intn(2) == 0 {
					congested[edge] = struct{}{}
				}
			}

			_, err := e.Process(ctx, tick, vehicles, congested)
			require.NoError(t, err)
			require.GreaterOrEqual(t, e.ReroutedCount(), prevCount)
			prevCount = e.ReroutedCount()
		}

		seen := make(map[string]bool)
		for _, rec := range e.Records() {
			require.False(t, seen[rec.VehicleID], "duplicate record for %s", rec.VehicleID)
			seen[rec.VehicleID] = true
			require.Len(t, sim.Targets(rec.VehicleID), 1)
			assert.Equal(t, "D", rec.NewRoute[len(rec.NewRoute)-1])
		}
	}
}
