package query

import (
	"context"
	"testing"
	"time"

	"github.com/sakha-transit/tripgraph/graphstore"
	"github.com/sakha-transit/tripgraph/types"
)

// memoryReader is an in-memory graphstore.Reader fixture for exercising
// dijkstra and segment hydration without a real Redis instance.
type memoryReader struct {
	nodes     map[string]bool
	neighbors map[string][]graphstore.Neighbor
}

func (m *memoryReader) CurrentVersion(ctx context.Context) (string, bool, error) {
	return "graph-v1", true, nil
}

func (m *memoryReader) HasNode(ctx context.Context, version, nodeID string) (bool, error) {
	return m.nodes[nodeID], nil
}

func (m *memoryReader) GetNeighbors(ctx context.Context, version, nodeID string) ([]graphstore.Neighbor, error) {
	return m.neighbors[nodeID], nil
}

func (m *memoryReader) HasEdge(ctx context.Context, version, fromID, toID string) (bool, error) {
	for _, n := range m.neighbors[fromID] {
		if n.NeighborID == toID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryReader) GetEdgeWeight(ctx context.Context, version, fromID, toID string) (float64, bool, error) {
	for _, n := range m.neighbors[fromID] {
		if n.NeighborID == toID {
			return n.Weight, true, nil
		}
	}
	return 0, false, nil
}

func (m *memoryReader) GetEdgeMetadata(ctx context.Context, version, fromID, toID string) (map[string]interface{}, bool, error) {
	for _, n := range m.neighbors[fromID] {
		if n.NeighborID == toID {
			return n.Metadata, true, nil
		}
	}
	return nil, false, nil
}

func chainReader() *memoryReader {
	return &memoryReader{
		nodes: map[string]bool{"a": true, "b": true, "c": true, "d": true},
		neighbors: map[string][]graphstore.Neighbor{
			"a": {{NeighborID: "b", Weight: 10}, {NeighborID: "c", Weight: 50}},
			"b": {{NeighborID: "c", Weight: 5}},
			"c": {{NeighborID: "d", Weight: 5}},
		},
	}
}

func TestDijkstraFindsShortestPath(t *testing.T) {
	r := chainReader()
	result, ok, err := dijkstra(context.Background(), r, "graph-v1", "a", "d", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a, d to be connected")
	}
	if result.Weight != 20 {
		t.Errorf("expected weight 10+5+5=20, got %.1f", result.Weight)
	}
	want := []string{"a", "b", "c", "d"}
	if len(result.Nodes) != len(want) {
		t.Fatalf("unexpected path length: %v", result.Nodes)
	}
	for i, n := range want {
		if result.Nodes[i] != n {
			t.Errorf("path[%d] = %s, want %s", i, result.Nodes[i], n)
		}
	}
}

func TestDijkstraReportsUnreachable(t *testing.T) {
	r := &memoryReader{nodes: map[string]bool{"a": true, "z": true}, neighbors: map[string][]graphstore.Neighbor{}}
	_, ok, err := dijkstra(context.Background(), r, "graph-v1", "a", "z", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected unreachable destination to report ok=false")
	}
}

func TestDijkstraHonorsEdgeExclusion(t *testing.T) {
	r := chainReader()
	excluded := map[string]bool{edgeKey("a", "b"): true}
	result, ok, err := dijkstra(context.Background(), r, "graph-v1", "a", "d", excluded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a detour through the direct a->c edge")
	}
	if result.Weight != 55 {
		t.Errorf("expected detour weight 50+5=55, got %.1f", result.Weight)
	}
}

func TestPathKeyDistinguishesDifferentPaths(t *testing.T) {
	if pathKey([]string{"a", "b", "c"}) == pathKey([]string{"a", "c"}) {
		t.Error("expected different node sequences to produce different keys")
	}
	if pathKey([]string{"a", "b"}) != pathKey([]string{"a", "b"}) {
		t.Error("expected identical node sequences to produce the same key")
	}
}

func TestIsoWeekdayMapsSundayToSeven(t *testing.T) {
	sunday := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	if got := isoWeekday(sunday); got != 7 {
		t.Errorf("expected Sunday to map to 7, got %d", got)
	}
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	if got := isoWeekday(monday); got != 1 {
		t.Errorf("expected Monday to map to 1, got %d", got)
	}
}

func TestRequestValidateRejectsOutOfRangePassengers(t *testing.T) {
	base := Request{FromCity: "Якутск", ToCity: "Москва", Date: time.Now(), Passengers: 1}

	zero := base
	zero.Passengers = 0
	if err := zero.Validate(); err == nil {
		t.Error("expected passengers=0 to fail validation")
	}

	tooMany := base
	tooMany.Passengers = 101
	if err := tooMany.Validate(); err == nil {
		t.Error("expected passengers=101 to fail validation")
	}

	if err := base.Validate(); err != nil {
		t.Errorf("expected a well-formed request to validate, got %v", err)
	}
}

func TestBuildCanonicalRouteCountsTransfersAndTransportTypes(t *testing.T) {
	route := Route{Segments: []Segment{
		{TransportType: types.TransportPlane, DepartureTime: "08:00"},
		{TransportType: types.TransportBus, ArrivalTime: "14:00"},
	}}
	built := buildCanonicalRoute(route)
	if built.TransferCount != 1 {
		t.Errorf("expected 1 transfer for a 2-segment route, got %d", built.TransferCount)
	}
	if len(built.TransportTypes) != 2 {
		t.Errorf("expected 2 distinct transport types, got %v", built.TransportTypes)
	}
	if built.DepartureTime != "08:00" || built.ArrivalTime != "14:00" {
		t.Errorf("expected departure/arrival from first/last segment, got %+v", built)
	}
}

func TestEngineExecuteReportsGraphUnavailable(t *testing.T) {
	reader := &unavailableReader{}
	e := &Engine{graph: reader}
	resp := e.Execute(context.Background(), Request{FromCity: "якутск", ToCity: "москва", Date: time.Now(), Passengers: 1})
	if resp.Success {
		t.Fatal("expected failure when no graph version is active")
	}
	if resp.GraphAvailable {
		t.Error("expected graphAvailable=false")
	}
	if resp.ErrorCode != types.QErrGraphUnavailable {
		t.Errorf("expected GRAPH_UNAVAILABLE, got %s", resp.ErrorCode)
	}
}

type unavailableReader struct{ memoryReader }

func (u *unavailableReader) CurrentVersion(ctx context.Context) (string, bool, error) {
	return "", false, nil
}
