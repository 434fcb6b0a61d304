package placement

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// LanePolicy picks the lane and offset hosting the sensor of a selected
// intersection. It returns domain.ErrNoQualifyingLane when none fits.
type LanePolicy interface {
	SelectLane(g *topology.Graph, c Candidate, minLaneLength float64) (lane string, offset float64, err error)
}

// NearestLane names NearestLanePolicy in configuration.
const NearestLane = "nearest-lane"

// PolicyFor maps a configured policy name to a LanePolicy. An empty name
// means nearest-lane.
func PolicyFor(name string) (LanePolicy, error) {
	switch name {
	case "", NearestLane:
		return NearestLanePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown sensor placement policy %q", name)
	}
}

// NearestLanePolicy considers lane 0 of every incident edge and keeps the one
// whose start lies closest to the intersection. It is a "closest
// representative lane" heuristic, not a network distance.
type NearestLanePolicy struct{}

func (NearestLanePolicy) SelectLane(g *topology.Graph, c Candidate, minLaneLength float64) (string, float64, error) {
	bestLane := ""
	bestOffset := math.Inf(1)

	for _, edgeID := range c.Edges {
		e, ok := g.Edge(edgeID)
		if !ok {
			continue
		}
		lane, ok := e.Lane(0)
		if !ok || lane.Length <= minLaneLength {
			continue
		}

		start := laneStart(g, e, lane)
		offset := ValidOffset(planar.Distance(c.Position, start), lane.Length)
		if offset < bestOffset {
			bestOffset = offset
			bestLane = lane.ID
		}
	}

	if bestLane == "" {
		return "", 0, domain.ErrNoQualifyingLane
	}
	return bestLane, bestOffset, nil
}

// ValidOffset clamps a distance into [1, laneLength-1].
func ValidOffset(dist, laneLength float64) float64 {
	return math.Max(1, math.Min(dist, laneLength-1))
}

func laneStart(g *topology.Graph, e *topology.Edge, lane topology.Lane) orb.Point {
	if len(lane.Shape) > 0 {
		return lane.Shape[0]
	}
	if n, ok := g.Node(e.From); ok {
		return n.Position
	}
	return orb.Point{}
}
