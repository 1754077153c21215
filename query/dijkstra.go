package query

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/sakha-transit/tripgraph/graphstore"
)

// pathResult is the outcome of one Dijkstra run: the ordered node sequence
// from start to end and its total weight.
type pathResult struct {
	Nodes  []string
	Weight float64
}

// pqEntry is one node's tentative-distance record in the Dijkstra frontier.
type pqEntry struct {
	node string
	dist float64
}

// nodeHeap is a lazy linear-scan-equivalent binary heap keyed by tentative
// distance — acceptable per spec §4.H step 4's "lazy linear-scan priority
// queue is acceptable", implemented here with container/heap for idiomatic
// O(log n) operations instead (grounded on the corpus's heap-based SSSP).
type nodeHeap []pqEntry

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(pqEntry)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// edgeKey identifies a directed edge for the exclusion set k-alternatives
// builds up between runs.
func edgeKey(from, to string) string { return from + "->" + to }

// dijkstra computes the shortest weighted path from start to end under
// version, skipping any directed edge present in excluded (spec §4.H step 4
// and step 6's edge-exclusion k-alternatives rule). Returns ok=false if end
// is unreachable.
func dijkstra(ctx context.Context, reader graphstore.Reader, version, start, end string, excluded map[string]bool) (pathResult, bool, error) {
	if start == end {
		return pathResult{Nodes: []string{start}, Weight: 0}, true, nil
	}

	dist := map[string]float64{start: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &nodeHeap{{node: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqEntry)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == end {
			break
		}

		neighbors, err := reader.GetNeighbors(ctx, version, cur.node)
		if err != nil {
			return pathResult{}, false, fmt.Errorf("query: get neighbors of %s: %w", cur.node, err)
		}
		for _, n := range neighbors {
			if excluded[edgeKey(cur.node, n.NeighborID)] {
				continue
			}
			if visited[n.NeighborID] {
				continue
			}
			alt := cur.dist + n.Weight
			if existing, ok := dist[n.NeighborID]; !ok || alt < existing {
				dist[n.NeighborID] = alt
				prev[n.NeighborID] = cur.node
				heap.Push(pq, pqEntry{node: n.NeighborID, dist: alt})
			}
		}
	}

	finalDist, ok := dist[end]
	if !ok || !visited[end] {
		return pathResult{}, false, nil
	}

	nodes := []string{end}
	for at := end; at != start; {
		p, ok := prev[at]
		if !ok {
			return pathResult{}, false, nil
		}
		nodes = append(nodes, p)
		at = p
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return pathResult{Nodes: nodes, Weight: finalDist}, true, nil
}

// pathEdges returns the directed edges that make up path, in order.
func pathEdges(path []string) []string {
	if len(path) < 2 {
		return nil
	}
	out := make([]string, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		out = append(out, edgeKey(path[i], path[i+1]))
	}
	return out
}

// pathKey is a deduplication key for k-alternatives (spec §4.H step 6
// "Deduplicate by path-key").
func pathKey(path []string) string {
	key := ""
	for _, n := range path {
		key += n + "|"
	}
	return key
}
