// Package topology holds the static road network: nodes, directed edges and
// their lanes. A Graph is populated once by a loader and is read-only after
// that, so concurrent readers need no locking.
package topology

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// Node is a network junction.
type Node struct {
	ID       string
	Position orb.Point
}

// Lane is a sub-division of an edge with its own length and shape.
type Lane struct {
	ID     string
	Index  int
	Length float64
	Shape  orb.LineString
}

// Edge is a directed road segment between two nodes.
type Edge struct {
	ID     string
	From   string
	To     string
	Length float64
	Lanes  []Lane
}

// Lane returns the lane with the given index.
func (e *Edge) Lane(index int) (Lane, bool) {
	for _, l := range e.Lanes {
		if l.Index == index {
			return l, true
		}
	}
	return Lane{}, false
}

// Graph is a directed graph weighted by edge length.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string

	edges     map[string]*Edge
	edgeOrder []string // static order, as loaded

	out map[string][]*Edge // key = from node
	in  map[string][]*Edge // key = to node

	lanes map[string]*Lane
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
		lanes: make(map[string]*Lane),
	}
}

// AddNode inserts a node. Only loaders call it.
func (g *Graph) AddNode(id string, pos orb.Point) error {
	if id == "" {
		return &LoadError{Element: "node", Reason: "missing id"}
	}
	if _, exists := g.nodes[id]; exists {
		return &LoadError{Element: "node " + id, Reason: "duplicate id"}
	}
	g.nodes[id] = &Node{ID: id, Position: pos}

	i := sort.SearchStrings(g.nodeOrder, id)
	g.nodeOrder = append(g.nodeOrder, "")
	copy(g.nodeOrder[i+1:], g.nodeOrder[i:])
	g.nodeOrder[i] = id
	return nil
}

// AddEdge inserts a directed edge between two known nodes. Only loaders call it.
func (g *Graph) AddEdge(e Edge) error {
	switch {
	case e.ID == "":
		return &LoadError{Element: "edge", Reason: "missing id"}
	case g.edges[e.ID] != nil:
		return &LoadError{Element: "edge " + e.ID, Reason: "duplicate id"}
	case g.nodes[e.From] == nil:
		return &LoadError{Element: "edge " + e.ID, Reason: fmt.Sprintf("unknown from-node %q", e.From)}
	case g.nodes[e.To] == nil:
		return &LoadError{Element: "edge " + e.ID, Reason: fmt.Sprintf("unknown to-node %q", e.To)}
	case e.Length <= 0:
		return &LoadError{Element: "edge " + e.ID, Reason: fmt.Sprintf("non-positive length %v", e.Length)}
	}
	seen := make(map[string]struct{}, len(e.Lanes))
	for _, l := range e.Lanes {
		if _, dup := seen[l.ID]; dup || g.lanes[l.ID] != nil {
			return &LoadError{Element: "lane " + l.ID, Reason: "duplicate id"}
		}
		seen[l.ID] = struct{}{}
	}

	edge := &e
	edge.Lanes = append([]Lane(nil), e.Lanes...)
	g.edges[e.ID] = edge
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.out[e.From] = append(g.out[e.From], edge)
	g.in[e.To] = append(g.in[e.To], edge)
	for i := range edge.Lanes {
		g.lanes[edge.Lanes[i].ID] = &edge.Lanes[i]
	}
	return nil
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Lane looks up a lane by id.
func (g *Graph) Lane(id string) (*Lane, bool) {
	l, ok := g.lanes[id]
	return l, ok
}

// NodeIDs returns node ids in ascending order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.nodeOrder...)
}

// EdgeIDs returns edge ids in static order.
func (g *Graph) EdgeIDs() []string {
	return append([]string(nil), g.edgeOrder...)
}

// LastEdge returns the last edge in static order, or "" for an empty graph.
func (g *Graph) LastEdge() string {
	if len(g.edgeOrder) == 0 {
		return ""
	}
	return g.edgeOrder[len(g.edgeOrder)-1]
}

// IncidentEdges returns incoming ∪ outgoing edge ids of a node in static order.
func (g *Graph) IncidentEdges(node string) []string {
	seen := make(map[string]struct{})
	for _, e := range g.in[node] {
		seen[e.ID] = struct{}{}
	}
	for _, e := range g.out[node] {
		seen[e.ID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for _, id := range g.edgeOrder {
		if _, ok := seen[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int { return len(g.edges) }
