// Package graphstore implements the versioned adjacency representation held
// in the hot key-value store (spec §4.C): a node set and per-node neighbor
// list under each graph version, plus a current-version pointer flipped only
// after a new snapshot is fully written. Built on go-redis/v9, following the
// pipelined-write idiom the corpus uses for atomic multi-key publication.
package graphstore

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/sakha-transit/tripgraph/config"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Neighbor is one out-edge of a node under a graph version (spec §4.C).
type Neighbor struct {
	NeighborID string                 `json:"neighborId"`
	Weight     float64                `json:"weight"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata is the global record describing one graph version (spec §3.1
// "Graph metadata", mirrored into the KV store as current_metadata).
type Metadata struct {
	Version         string `json:"version"`
	DatasetVersion  string `json:"datasetVersion"`
	TotalNodes      int    `json:"totalNodes"`
	TotalEdges      int    `json:"totalEdges"`
	BuildDurationMs int64  `json:"buildDurationMs"`
}

// Statistics is the live-recomputed summary returned by GetGraphStatistics
// (spec §4.C).
type Statistics struct {
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	AvgOutDegree   float64 `json:"avgOutDegree"`
	DensityPercent float64 `json:"densityPercent"`
}

// Reader is the narrow read-only view the query engine depends on, so
// Dijkstra and segment hydration never need the write-side methods (spec §9:
// "non-suspending except at getNeighbors calls").
type Reader interface {
	CurrentVersion(ctx context.Context) (string, bool, error)
	HasNode(ctx context.Context, version, nodeID string) (bool, error)
	GetNeighbors(ctx context.Context, version, nodeID string) ([]Neighbor, error)
	HasEdge(ctx context.Context, version, fromID, toID string) (bool, error)
	GetEdgeWeight(ctx context.Context, version, fromID, toID string) (float64, bool, error)
	GetEdgeMetadata(ctx context.Context, version, fromID, toID string) (map[string]interface{}, bool, error)
}

// Store is the graphstore.Reader implementation plus the graph-builder's
// write-side operations. Only the graph builder ever calls the write
// methods (spec §5 "Only the graph-builder writes to the KV graph keys").
type Store struct {
	client *redis.Client
	prefix string
	scan   int64
}

// New dials the hot KV store using the settings in cfg.
func New(cfg config.GraphKVConfig) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "graph:"
	}
	scan := cfg.ScanBatchSize
	if scan <= 0 {
		scan = 500
	}
	return &Store{client: client, prefix: prefix, scan: scan}
}

func (s *Store) keyCurrentVersion() string    { return s.prefix + "current:version" }
func (s *Store) keyCurrentMetadata() string   { return s.prefix + "current:metadata" }
func (s *Store) keyNodes(version string) string {
	return fmt.Sprintf("%s%s:nodes", s.prefix, version)
}
func (s *Store) keyNeighbors(version, nodeID string) string {
	return fmt.Sprintf("%s%s:neighbors:%s", s.prefix, version, nodeID)
}

// CurrentVersion returns the active version pointer, or ok=false if none has
// been published yet (spec §4.H step 1 availability gate).
func (s *Store) CurrentVersion(ctx context.Context) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyCurrentVersion()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// CurrentMetadata returns the metadata blob for the active version.
func (s *Store) CurrentMetadata(ctx context.Context) (Metadata, bool, error) {
	raw, err := s.client.Get(ctx, s.keyCurrentMetadata()).Bytes()
	if err == redis.Nil {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	var m Metadata
	if err := codec.Unmarshal(raw, &m); err != nil {
		return Metadata{}, false, err
	}
	return m, true, nil
}

// SaveGraph writes an entire snapshot — node set plus every node's neighbor
// list — under version, and atomically flips both the current_version and
// current_metadata pointers as the final step of one pipeline, so no reader
// observes a partially written snapshot under the new pointer (spec §4.C).
func (s *Store) SaveGraph(ctx context.Context, version string, nodes []string, edgesByFrom map[string][]Neighbor, meta Metadata) error {
	pipe := s.client.TxPipeline()

	if len(nodes) > 0 {
		members := make([]interface{}, len(nodes))
		for i, n := range nodes {
			members[i] = n
		}
		pipe.SAdd(ctx, s.keyNodes(version), members...)
	}

	for nodeID, neighbors := range edgesByFrom {
		data, err := codec.Marshal(neighbors)
		if err != nil {
			return fmt.Errorf("graphstore: marshal neighbors for %s: %w", nodeID, err)
		}
		pipe.Set(ctx, s.keyNeighbors(version, nodeID), data, 0)
	}

	metaBytes, err := codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("graphstore: marshal metadata: %w", err)
	}
	pipe.Set(ctx, s.keyCurrentMetadata(), metaBytes, 0)
	pipe.Set(ctx, s.keyCurrentVersion(), version, 0)

	_, err = pipe.Exec(ctx)
	return err
}

// SetCurrentVersion atomically swaps the active pointer to an
// already-written version, without rewriting its snapshot (used to restore a
// previous graph, spec §8 round-trip property).
func (s *Store) SetCurrentVersion(ctx context.Context, version string) error {
	return s.client.Set(ctx, s.keyCurrentVersion(), version, 0).Err()
}

// DeleteGraph removes every key for a version using cursor-based SCAN, never
// the blocking KEYS command (spec §4.C).
func (s *Store) DeleteGraph(ctx context.Context, version string) error {
	pattern := fmt.Sprintf("%s%s:*", s.prefix, version)
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scan).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// HasNode reports whether nodeID belongs to the node set of version.
func (s *Store) HasNode(ctx context.Context, version, nodeID string) (bool, error) {
	return s.client.SIsMember(ctx, s.keyNodes(version), nodeID).Result()
}

// GetNeighbors returns the neighbor list for nodeID under version, or an
// empty list if the node has no out-edges (spec §4.C).
func (s *Store) GetNeighbors(ctx context.Context, version, nodeID string) ([]Neighbor, error) {
	raw, err := s.client.Get(ctx, s.keyNeighbors(version, nodeID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var neighbors []Neighbor
	if err := codec.Unmarshal(raw, &neighbors); err != nil {
		return nil, err
	}
	return neighbors, nil
}

// HasEdge reports whether fromID has an out-edge to toID under version.
func (s *Store) HasEdge(ctx context.Context, version, fromID, toID string) (bool, error) {
	neighbors, err := s.GetNeighbors(ctx, version, fromID)
	if err != nil {
		return false, err
	}
	for _, n := range neighbors {
		if n.NeighborID == toID {
			return true, nil
		}
	}
	return false, nil
}

// GetEdgeWeight returns the weight of edge fromID->toID under version.
func (s *Store) GetEdgeWeight(ctx context.Context, version, fromID, toID string) (float64, bool, error) {
	neighbors, err := s.GetNeighbors(ctx, version, fromID)
	if err != nil {
		return 0, false, err
	}
	for _, n := range neighbors {
		if n.NeighborID == toID {
			return n.Weight, true, nil
		}
	}
	return 0, false, nil
}

// GetEdgeMetadata returns the metadata of edge fromID->toID under version.
func (s *Store) GetEdgeMetadata(ctx context.Context, version, fromID, toID string) (map[string]interface{}, bool, error) {
	neighbors, err := s.GetNeighbors(ctx, version, fromID)
	if err != nil {
		return nil, false, err
	}
	for _, n := range neighbors {
		if n.NeighborID == toID {
			return n.Metadata, true, nil
		}
	}
	return nil, false, nil
}

// Structure is the symmetric export/import payload used for backup/restore
// (spec §4.C exportGraphStructure/importGraphStructure).
type Structure struct {
	Version  string              `json:"version"`
	Metadata Metadata            `json:"metadata"`
	Nodes    []string            `json:"nodes"`
	Edges    map[string][]Neighbor `json:"edges"`
}

// ExportGraphStructure reads an entire version's snapshot into one payload.
func (s *Store) ExportGraphStructure(ctx context.Context, version string) (*Structure, error) {
	nodes, err := s.client.SMembers(ctx, s.keyNodes(version)).Result()
	if err != nil {
		return nil, err
	}

	edges := make(map[string][]Neighbor, len(nodes))
	for _, n := range nodes {
		neighbors, err := s.GetNeighbors(ctx, version, n)
		if err != nil {
			return nil, err
		}
		if len(neighbors) > 0 {
			edges[n] = neighbors
		}
	}

	meta, _, err := s.metadataForVersion(ctx, version)
	if err != nil {
		return nil, err
	}

	return &Structure{Version: version, Metadata: meta, Nodes: nodes, Edges: edges}, nil
}

// ImportGraphStructure writes a previously exported snapshot back under a
// (possibly new) version, without touching the current-version pointer.
func (s *Store) ImportGraphStructure(ctx context.Context, version string, structure *Structure) error {
	pipe := s.client.TxPipeline()

	if len(structure.Nodes) > 0 {
		members := make([]interface{}, len(structure.Nodes))
		for i, n := range structure.Nodes {
			members[i] = n
		}
		pipe.SAdd(ctx, s.keyNodes(version), members...)
	}
	for nodeID, neighbors := range structure.Edges {
		data, err := codec.Marshal(neighbors)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.keyNeighbors(version, nodeID), data, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// metadataForVersion returns the current_metadata blob when version is the
// active one. No per-version metadata is stored, so any other version gets a
// Metadata carrying only its version string.
func (s *Store) metadataForVersion(ctx context.Context, version string) (Metadata, bool, error) {
	current, ok, err := s.CurrentVersion(ctx)
	if err == nil && ok && current == version {
		return s.CurrentMetadata(ctx)
	}
	return Metadata{Version: version}, false, nil
}

// GetGraphStatistics recomputes node/edge counts and density from current
// live data rather than trusting the stored metadata blob (spec §4.C).
func (s *Store) GetGraphStatistics(ctx context.Context) (Statistics, error) {
	version, ok, err := s.CurrentVersion(ctx)
	if err != nil {
		return Statistics{}, err
	}
	if !ok {
		return Statistics{}, nil
	}

	nodes, err := s.client.SMembers(ctx, s.keyNodes(version)).Result()
	if err != nil {
		return Statistics{}, err
	}

	edgeCount := 0
	for _, n := range nodes {
		neighbors, err := s.GetNeighbors(ctx, version, n)
		if err != nil {
			return Statistics{}, err
		}
		edgeCount += len(neighbors)
	}

	stats := Statistics{Nodes: len(nodes), Edges: edgeCount}
	if len(nodes) > 0 {
		stats.AvgOutDegree = float64(edgeCount) / float64(len(nodes))
		maxPossible := float64(len(nodes)) * float64(len(nodes)-1)
		if maxPossible > 0 {
			stats.DensityPercent = float64(edgeCount) / maxPossible * 100
		}
	}
	return stats, nil
}

// Close releases the underlying client connection.
func (s *Store) Close() error { return s.client.Close() }
