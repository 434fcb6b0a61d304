package reroute

import (
	"fmt"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
)

// DestinationPolicy chooses the fixed destination edge of a session.
type DestinationPolicy interface {
	Destination(g *topology.Graph) (string, error)
}

// LastEdgePolicy picks the last edge in static order.
type LastEdgePolicy struct{}

func (LastEdgePolicy) Destination(g *topology.Graph) (string, error) {
	id := g.LastEdge()
	if id == "" {
		return "", fmt.Errorf("%w: network has no edges", domain.ErrLoad)
	}
	return id, nil
}

// FixedEdgePolicy always returns the configured edge.
type FixedEdgePolicy struct {
	EdgeID string
}

func (p FixedEdgePolicy) Destination(g *topology.Graph) (string, error) {
	if _, ok := g.Edge(p.EdgeID); !ok {
		return "", fmt.Errorf("%w: destination edge %q not in network", domain.ErrLoad, p.EdgeID)
	}
	return p.EdgeID, nil
}

// Destination policy names accepted by PolicyFor.
const (
	PolicyLastEdge = "last-edge"
	PolicyFixed    = "fixed"
)

// PolicyFor maps a policy name to a DestinationPolicy. An empty name means
// last-edge; edgeID is only read by the fixed policy.
func PolicyFor(name, edgeID string) (DestinationPolicy, error) {
	switch name {
	case "", PolicyLastEdge:
		return LastEdgePolicy{}, nil
	case PolicyFixed:
		if edgeID == "" {
			return nil, fmt.Errorf("fixed destination policy needs an edge id")
		}
		return FixedEdgePolicy{EdgeID: edgeID}, nil
	default:
		return nil, fmt.Errorf("unknown destination policy %q", name)
	}
}
