package placement_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourWay(t *testing.T, laneLength float64) *topology.Graph {
	t.Helper()
	yn := topology.YNetwork{
		Nodes: []topology.YNode{
			{ID: "C", X: 0, Y: 0},
			{ID: "N", X: 0, Y: 50},
			{ID: "E", X: 50, Y: 0},
			{ID: "S", X: 0, Y: -50},
			{ID: "W", X: -50, Y: 0},
		},
		Edges: []topology.YEdge{
			{ID: "nc", From: "N", To: "C", Lanes: []topology.YLane{{Length: laneLength}}},
			{ID: "ce", From: "C", To: "E", Lanes: []topology.YLane{{Length: laneLength}}},
			{ID: "sc", From: "S", To: "C", Lanes: []topology.YLane{{Length: laneLength}}},
			{ID: "cw", From: "C", To: "W", Lanes: []topology.YLane{{Length: laneLength}}},
		},
	}
	g, err := topology.FromYAML(yn)
	require.NoError(t, err)
	return g
}

func newOptimizer() *placement.Optimizer {
	return placement.NewOptimizer(placement.DefaultConfig(), zerolog.Nop())
}

func TestOptimizer_FourWayIntersection(t *testing.T) {
	g := fourWay(t, 50)

	res, err := newOptimizer().Run(g)
	require.NoError(t, err)

	assert.Equal(t, 4, res.TargetEdges)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "C", res.Selected[0].NodeID)
	assert.Equal(t, []string{"ce", "cw", "nc", "sc"}, res.Covered)

	require.Len(t, res.Sensors, 1)
	assert.Equal(t, domain.Sensor{ID: "rsu_0", Lane: "ce_0", Position: 1}, res.Sensors[0])
}

func TestOptimizer_NoQualifyingLanes(t *testing.T) {
	g := fourWay(t, 5) // not strictly longer than the minimum

	res, err := newOptimizer().Run(g)
	require.NoError(t, err)
	assert.Len(t, res.Selected, 1)
	assert.Empty(t, res.Sensors)
	assert.Equal(t, []string{"C"}, res.Dropped)
}

func TestOptimizer_EmptyTarget(t *testing.T) {
	g, err := topology.FromYAML(topology.YNetwork{
		Nodes: []topology.YNode{{ID: "A"}, {ID: "B", X: 10}},
		Edges: []topology.YEdge{{ID: "ab", From: "A", To: "B"}, {ID: "ba", From: "B", To: "A"}},
	})
	require.NoError(t, err)

	res, err := newOptimizer().Run(g)
	require.NoError(t, err)
	assert.Zero(t, res.TargetEdges)
	assert.Empty(t, res.Sensors)
	assert.Empty(t, res.Selected)
}

func TestOptimizer_SpatialExclusion(t *testing.T) {
	// Two 3-way intersections 40 apart: only one may be chosen.
	g, err := topology.FromYAML(topology.YNetwork{
		Nodes: []topology.YNode{
			{ID: "A", X: 0}, {ID: "B", X: 40},
			{ID: "a1", X: -60}, {ID: "a2", Y: 60},
			{ID: "b1", X: 100}, {ID: "b2", X: 40, Y: 60},
		},
		Edges: []topology.YEdge{
			{ID: "ab", From: "A", To: "B"},
			{ID: "a1a", From: "a1", To: "A"},
			{ID: "aa2", From: "A", To: "a2"},
			{ID: "bb1", From: "B", To: "b1"},
			{ID: "b2b", From: "b2", To: "B"},
		},
	})
	require.NoError(t, err)

	res, err := newOptimizer().Run(g)
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "A", res.Selected[0].NodeID, "equal gain ties break by node id")
	assert.Equal(t, 5, res.TargetEdges)
	assert.Equal(t, []int{3}, res.CoverageTrace)

	t.Run("smaller distance allows both", func(t *testing.T) {
		cfg := placement.DefaultConfig()
		cfg.MinDistance = 40
		res, err := placement.NewOptimizer(cfg, zerolog.Nop()).Run(g)
		require.NoError(t, err)
		require.Len(t, res.Selected, 2)
		assert.Equal(t, []int{3, 5}, res.CoverageTrace)
		assert.Len(t, res.Covered, 5)
	})
}

func randomNetwork(t *testing.T, rng *rand.Rand) *topology.Graph {
	t.Helper()
	n := 5 + rng.Intn(25)
	yn := topology.YNetwork{}
	for i := 0; i < n; i++ {
		yn.Nodes = append(yn.Nodes, topology.YNode{
			ID: fmt.Sprintf("n%03d", i),
			X:  rng.Float64() * 600,
			Y:  rng.Float64() * 600,
		})
	}
	m := n + rng.Intn(n*3)
	for i := 0; i < m; i++ {
		from, to := rng.Intn(n), rng.Intn(n)
		if from == to {
			continue
		}
		yn.Edges = append(yn.Edges, topology.YEdge{
			ID:    fmt.Sprintf("e%03d", i),
			From:  yn.Nodes[from].ID,
			To:    yn.Nodes[to].ID,
			Lanes: []topology.YLane{{Length: 1 + rng.Float64()*20}},
		})
	}
	g, err := topology.FromYAML(yn)
	require.NoError(t, err)
	return g
}

func TestOptimizer_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	opt := newOptimizer()

	for i := 0; i < 200; i++ {
		g := randomNetwork(t, rng)
		candidates := placement.Candidates(g)

		target := map[string]bool{}
		for _, c := range candidates {
			for _, e := range c.Edges {
				target[e] = true
			}
		}

		res, err := opt.Run(g)
		require.NoError(t, err)

		for _, e := range res.Covered {
			assert.True(t, target[e], "covered edge %s outside target", e)
		}
		for j := 1; j < len(res.CoverageTrace); j++ {
			assert.Greater(t, res.CoverageTrace[j], res.CoverageTrace[j-1])
		}
		for a := range res.Selected {
			for b := a + 1; b < len(res.Selected); b++ {
				d := planar.Distance(res.Selected[a].Position, res.Selected[b].Position)
				assert.GreaterOrEqual(t, d, placement.DefaultMinDistance)
			}
		}
		assert.LessOrEqual(t, len(res.Sensors), len(res.Selected))
		assert.LessOrEqual(t, len(res.Selected), len(candidates))
		assert.Equal(t, len(res.Selected), len(res.Sensors)+len(res.Dropped))
	}
}

func TestValidOffset(t *testing.T) {
	assert.Equal(t, 1.0, placement.ValidOffset(0, 50))
	assert.Equal(t, 12.5, placement.ValidOffset(12.5, 50))
	assert.Equal(t, 49.0, placement.ValidOffset(80, 50))
}

func TestSensorArtifactRoundTrip(t *testing.T) {
	sensors := []domain.Sensor{
		{ID: "rsu_0", Lane: "ce_0", Position: 1},
		{ID: "rsu_1", Lane: "-12345#2_0", Position: 1.0 / 3.0},
		{ID: "rsu_2", Lane: "x_1", Position: 98.76543210123},
	}

	var buf bytes.Buffer
	require.NoError(t, placement.WriteSensors(&buf, sensors))
	assert.Contains(t, buf.String(), `<inductionLoop id="rsu_0" lane="ce_0" pos="1" freq="1" file="detector_output.xml"></inductionLoop>`)

	got, err := placement.ReadSensors(&buf)
	require.NoError(t, err)
	assert.Equal(t, sensors, got)
}

func TestReadSensors_Malformed(t *testing.T) {
	_, err := placement.ReadSensors(bytes.NewBufferString(`<additional><inductionLoop id="a" lane="l" pos="abc"/></additional>`))
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestPolicyFor(t *testing.T) {
	for _, name := range []string{"", placement.NearestLane} {
		p, err := placement.PolicyFor(name)
		require.NoError(t, err, name)
		assert.IsType(t, placement.NearestLanePolicy{}, p)
	}

	_, err := placement.PolicyFor("farthest-lane")
	assert.Error(t, err)
}
