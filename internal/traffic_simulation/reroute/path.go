package reroute

import (
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
)

// FindPath returns the shortest edge sequence from sourceEdge to destEdge.
// The search runs between the origin nodes of both edges and ignores
// congestion. The result starts with sourceEdge and ends with destEdge.
func FindPath(g *topology.Graph, sourceEdge, destEdge string) ([]string, error) {
	src, ok := g.Edge(sourceEdge)
	if !ok {
		return nil, fmt.Errorf("%w: unknown source edge %q", domain.ErrNoPathFound, sourceEdge)
	}
	dst, ok := g.Edge(destEdge)
	if !ok {
		return nil, fmt.Errorf("%w: unknown destination edge %q", domain.ErrNoPathFound, destEdge)
	}

	nodes, _, err := g.ShortestPath(src.From, dst.From)
	if err != nil {
		return nil, err
	}

	path := g.EdgePath(nodes)
	if len(path) == 0 || path[0] != sourceEdge {
		path = append([]string{sourceEdge}, path...)
	}
	if path[len(path)-1] != destEdge {
		path = append(path, destEdge)
	}
	return path, nil
}
