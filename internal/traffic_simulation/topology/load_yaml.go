package topology

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gopkg.in/yaml.v3"
)

// YNetwork is the YAML scenario format.
type YNetwork struct {
	Nodes []YNode `yaml:"nodes"`
	Edges []YEdge `yaml:"edges"`
}

type YNode struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type YEdge struct {
	ID     string  `yaml:"id"`
	From   string  `yaml:"from"`
	To     string  `yaml:"to"`
	Length float64 `yaml:"length,omitempty"`
	Lanes  []YLane `yaml:"lanes,omitempty"`
}

type YLane struct {
	ID     string       `yaml:"id,omitempty"`
	Length float64      `yaml:"length"`
	Shape  [][2]float64 `yaml:"shape,omitempty"`
}

// LoadYAML reads a YAML scenario. Edges without lanes get a single lane
// "<edge>_0" running straight between the two nodes; a missing edge length
// falls back to lane 0 and then to the node distance.
func LoadYAML(r io.Reader) (*Graph, error) {
	b, err := readAll(r)
	if err != nil {
		return nil, err
	}

	var yn YNetwork
	if err := yaml.Unmarshal(b, &yn); err != nil {
		return nil, &LoadError{Reason: "malformed YAML", Err: err}
	}
	return FromYAML(yn)
}

// FromYAML builds a graph from an already decoded scenario.
func FromYAML(yn YNetwork) (*Graph, error) {
	g := New()
	for _, n := range yn.Nodes {
		if err := g.AddNode(n.ID, orb.Point{n.X, n.Y}); err != nil {
			return nil, err
		}
	}

	for _, ye := range yn.Edges {
		from, ok := g.Node(ye.From)
		if !ok {
			return nil, &LoadError{Element: "edge " + ye.ID, Reason: fmt.Sprintf("unknown from-node %q", ye.From)}
		}
		to, ok := g.Node(ye.To)
		if !ok {
			return nil, &LoadError{Element: "edge " + ye.ID, Reason: fmt.Sprintf("unknown to-node %q", ye.To)}
		}

		length := ye.Length
		lanes := make([]Lane, 0, len(ye.Lanes))
		for i, yl := range ye.Lanes {
			id := yl.ID
			if id == "" {
				id = fmt.Sprintf("%s_%d", ye.ID, i)
			}
			shape := make(orb.LineString, 0, len(yl.Shape))
			for _, p := range yl.Shape {
				shape = append(shape, orb.Point{p[0], p[1]})
			}
			if len(shape) == 0 {
				shape = orb.LineString{from.Position, to.Position}
			}
			lanes = append(lanes, Lane{ID: id, Index: i, Length: yl.Length, Shape: shape})
		}

		if length <= 0 && len(lanes) > 0 {
			length = lanes[0].Length
		}
		if length <= 0 {
			length = planar.Distance(from.Position, to.Position)
		}
		if len(lanes) == 0 {
			lanes = append(lanes, Lane{
				ID:     ye.ID + "_0",
				Length: length,
				Shape:  orb.LineString{from.Position, to.Position},
			})
		}

		if err := g.AddEdge(Edge{ID: ye.ID, From: ye.From, To: ye.To, Length: length, Lanes: lanes}); err != nil {
			return nil, err
		}
	}
	return g, nil
}
