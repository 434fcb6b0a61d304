package topology

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// ShortestPath runs Dijkstra from one node to another using edge length as
// weight. It returns the node sequence and its total length.
func (g *Graph) ShortestPath(start, goal string) ([]string, float64, error) {
	if _, ok := g.nodes[start]; !ok {
		return nil, 0, fmt.Errorf("%w: unknown node %q", domain.ErrNoPathFound, start)
	}
	if _, ok := g.nodes[goal]; !ok {
		return nil, 0, fmt.Errorf("%w: unknown node %q", domain.ErrNoPathFound, goal)
	}

	dist := make(map[string]float64, len(g.nodes))
	prev := make(map[string]string)
	for n := range g.nodes {
		dist[n] = math.Inf(1)
	}
	dist[start] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &item{node: start, priority: 0})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(*item)
		u := it.node
		if it.priority > dist[u] {
			continue // stale entry
		}
		if u == goal {
			break
		}
		for _, e := range g.out[u] {
			alt := dist[u] + e.Length
			if alt < dist[e.To] {
				dist[e.To] = alt
				prev[e.To] = u
				heap.Push(pq, &item{node: e.To, priority: alt})
			}
		}
	}

	if math.IsInf(dist[goal], 1) {
		return nil, 0, fmt.Errorf("%w: %s is unreachable from %s", domain.ErrNoPathFound, goal, start)
	}

	var path []string
	for u := goal; ; u = prev[u] {
		path = append(path, u)
		if u == start {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[goal], nil
}

// EdgeBetween returns the shortest edge from one node to another. Parallel
// edges of equal length resolve to the first in static order.
func (g *Graph) EdgeBetween(from, to string) (*Edge, bool) {
	var best *Edge
	for _, e := range g.out[from] {
		if e.To == to && (best == nil || e.Length < best.Length) {
			best = e
		}
	}
	return best, best != nil
}

// EdgePath maps consecutive node pairs of a node path to edge ids.
func (g *Graph) EdgePath(nodes []string) []string {
	var edges []string
	for i := 0; i+1 < len(nodes); i++ {
		if e, ok := g.EdgeBetween(nodes[i], nodes[i+1]); ok {
			edges = append(edges, e.ID)
		}
	}
	return edges
}

// ---------- internal PQ ----------
type item struct {
	node     string
	priority float64
}
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority == pq[j].priority {
		return pq[i].node < pq[j].node
	}
	return pq[i].priority < pq[j].priority
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*item)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}
