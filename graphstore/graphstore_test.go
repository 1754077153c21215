package graphstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/sakha-transit/tripgraph/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := config.GraphKVConfig{Addr: mr.Addr(), KeyPrefix: "graph:", ScanBatchSize: 100}
	store := New(cfg)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveGraphAndReadBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	edges := map[string][]Neighbor{
		"stop-1": {{NeighborID: "stop-2", Weight: 360, Metadata: map[string]interface{}{"transportType": "PLANE"}}},
	}
	err := store.SaveGraph(ctx, "graph-v1", []string{"stop-1", "stop-2"}, edges, Metadata{
		Version: "graph-v1", TotalNodes: 2, TotalEdges: 1,
	})
	if err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	version, ok, err := store.CurrentVersion(ctx)
	if err != nil || !ok || version != "graph-v1" {
		t.Fatalf("expected current version graph-v1, got %q ok=%v err=%v", version, ok, err)
	}

	hasNode, err := store.HasNode(ctx, version, "stop-1")
	if err != nil || !hasNode {
		t.Fatalf("expected stop-1 to be a node, err=%v", err)
	}

	neighbors, err := store.GetNeighbors(ctx, version, "stop-1")
	if err != nil {
		t.Fatalf("GetNeighbors failed: %v", err)
	}
	if len(neighbors) != 1 || neighbors[0].NeighborID != "stop-2" || neighbors[0].Weight != 360 {
		t.Fatalf("unexpected neighbors: %+v", neighbors)
	}

	weight, ok, err := store.GetEdgeWeight(ctx, version, "stop-1", "stop-2")
	if err != nil || !ok || weight != 360 {
		t.Fatalf("unexpected edge weight: %v ok=%v err=%v", weight, ok, err)
	}
}

func TestGetNeighborsOfUnknownNodeIsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveGraph(ctx, "graph-v1", []string{"stop-1"}, nil, Metadata{Version: "graph-v1"}); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	neighbors, err := store.GetNeighbors(ctx, "graph-v1", "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(neighbors) != 0 {
		t.Fatalf("expected empty neighbor list, got %v", neighbors)
	}
}

func TestDeleteGraphRemovesAllKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	edges := map[string][]Neighbor{"stop-1": {{NeighborID: "stop-2", Weight: 100}}}
	if err := store.SaveGraph(ctx, "graph-v1", []string{"stop-1", "stop-2"}, edges, Metadata{Version: "graph-v1"}); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	if err := store.DeleteGraph(ctx, "graph-v1"); err != nil {
		t.Fatalf("DeleteGraph failed: %v", err)
	}

	hasNode, err := store.HasNode(ctx, "graph-v1", "stop-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasNode {
		t.Fatal("expected node set to be gone after delete")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	edges := map[string][]Neighbor{"stop-1": {{NeighborID: "stop-2", Weight: 42}}}
	if err := store.SaveGraph(ctx, "graph-v1", []string{"stop-1", "stop-2"}, edges, Metadata{Version: "graph-v1", TotalNodes: 2, TotalEdges: 1}); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	structure, err := store.ExportGraphStructure(ctx, "graph-v1")
	if err != nil {
		t.Fatalf("ExportGraphStructure failed: %v", err)
	}

	if err := store.ImportGraphStructure(ctx, "graph-v2", structure); err != nil {
		t.Fatalf("ImportGraphStructure failed: %v", err)
	}

	neighbors, err := store.GetNeighbors(ctx, "graph-v2", "stop-1")
	if err != nil || len(neighbors) != 1 || neighbors[0].NeighborID != "stop-2" {
		t.Fatalf("round trip lost data: neighbors=%+v err=%v", neighbors, err)
	}
}

func TestGetGraphStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	edges := map[string][]Neighbor{
		"a": {{NeighborID: "b", Weight: 1}, {NeighborID: "c", Weight: 1}},
	}
	if err := store.SaveGraph(ctx, "v1", []string{"a", "b", "c"}, edges, Metadata{Version: "v1"}); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	stats, err := store.GetGraphStatistics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Nodes != 3 || stats.Edges != 2 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}
