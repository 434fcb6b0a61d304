// Package placement selects roadside sensor sites with a greedy weighted set
// cover: high-degree intersections are picked by how many still-uncovered
// edges they touch, subject to a minimum distance between chosen sites.
package placement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog"
)

const (
	DefaultMinDistance   = 100.0
	DefaultMinLaneLength = 5.0
	// MinIncidentEdges is exclusive: candidates need more than this many incident edges.
	MinIncidentEdges = 2
)

// Config tunes an optimizer run.
type Config struct {
	MinDistance   float64
	MinLaneLength float64
	Policy        LanePolicy
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		MinDistance:   DefaultMinDistance,
		MinLaneLength: DefaultMinLaneLength,
		Policy:        NearestLanePolicy{},
	}
}

// Candidate is an intersection eligible for a sensor.
type Candidate struct {
	NodeID   string    `json:"node_id"`
	Position orb.Point `json:"position"`
	Edges    []string  `json:"edges"`
}

// Result is the outcome of one optimizer run.
type Result struct {
	Sensors  []domain.Sensor `json:"sensors"`
	Selected []Candidate     `json:"selected"`
	// Dropped lists selected intersections without a qualifying lane.
	Dropped []string `json:"dropped"`
	// CoverageTrace is the covered-edge count after each selection.
	CoverageTrace []int    `json:"coverage_trace"`
	Covered       []string `json:"covered"`
	TargetEdges   int      `json:"target_edges"`
}

// Optimizer runs sensor placement over a loaded network.
type Optimizer struct {
	cfg Config
	log zerolog.Logger
}

// NewOptimizer fills zero config fields with defaults.
func NewOptimizer(cfg Config, log zerolog.Logger) *Optimizer {
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = DefaultMinDistance
	}
	if cfg.MinLaneLength <= 0 {
		cfg.MinLaneLength = DefaultMinLaneLength
	}
	if cfg.Policy == nil {
		cfg.Policy = NearestLanePolicy{}
	}
	return &Optimizer{cfg: cfg, log: log}
}

// Candidates returns intersections with more than two incident edges, by node id.
func Candidates(g *topology.Graph) []Candidate {
	var out []Candidate
	for _, id := range g.NodeIDs() {
		edges := g.IncidentEdges(id)
		if len(edges) <= MinIncidentEdges {
			continue
		}
		n, _ := g.Node(id)
		out = append(out, Candidate{NodeID: id, Position: n.Position, Edges: edges})
	}
	return out
}

// Run selects intersections and places one sensor per selected intersection.
func (o *Optimizer) Run(g *topology.Graph) (*Result, error) {
	candidates := Candidates(g)

	target := make(map[string]struct{})
	for _, c := range candidates {
		for _, e := range c.Edges {
			target[e] = struct{}{}
		}
	}

	res := &Result{TargetEdges: len(target)}
	if len(target) == 0 {
		o.log.Info().Msg("no candidate intersections, nothing to place")
		return res, nil
	}

	covered := make(map[string]struct{}, len(target))
	selected := make(map[string]bool)
	var used []orb.Point

	for len(covered) < len(target) {
		best := -1
		bestGain := 0

		for i, c := range candidates {
			if selected[c.NodeID] || tooClose(c.Position, used, o.cfg.MinDistance) {
				continue
			}
			gain := 0
			for _, e := range c.Edges {
				if _, ok := covered[e]; !ok {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}

		if best < 0 {
			break
		}

		c := candidates[best]
		selected[c.NodeID] = true
		for _, e := range c.Edges {
			covered[e] = struct{}{}
		}
		used = append(used, c.Position)
		res.Selected = append(res.Selected, c)
		res.CoverageTrace = append(res.CoverageTrace, len(covered))
	}

	for _, c := range res.Selected {
		lane, offset, err := o.cfg.Policy.SelectLane(g, c, o.cfg.MinLaneLength)
		if errors.Is(err, domain.ErrNoQualifyingLane) {
			o.log.Debug().Str("node", c.NodeID).Msg("selected intersection has no qualifying lane")
			res.Dropped = append(res.Dropped, c.NodeID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("select lane at %s: %w", c.NodeID, err)
		}
		res.Sensors = append(res.Sensors, domain.Sensor{
			ID:       fmt.Sprintf("rsu_%d", len(res.Sensors)),
			Lane:     lane,
			Position: offset,
		})
	}

	res.Covered = make([]string, 0, len(covered))
	for e := range covered {
		res.Covered = append(res.Covered, e)
	}
	sort.Strings(res.Covered)

	o.log.Info().
		Int("candidates", len(candidates)).
		Int("selected", len(res.Selected)).
		Int("sensors", len(res.Sensors)).
		Int("covered_edges", len(covered)).
		Int("target_edges", len(target)).
		Msg("sensor placement complete")

	return res, nil
}

func tooClose(p orb.Point, used []orb.Point, minDist float64) bool {
	for _, u := range used {
		if planar.Distance(p, u) < minDist {
			return true
		}
	}
	return false
}
