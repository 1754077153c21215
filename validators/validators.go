// Package validators implements the three independent checks every
// materialized graph must pass before activation (spec §4.D): structural
// soundness, transfer-edge city consistency, and ferry-edge terminal
// consistency. Each returns a ValidationResult shaped after the teacher
// corpus's error/warning-separated validation report.
package validators

import (
	"math"
	"strings"

	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/types"
)

// Node is the validator's view of a graph node — enough to classify a stop
// and check city identity, independent of the storage representation.
type Node struct {
	ID        string
	CityID    string
	Name      string
	IsVirtual bool
	Metadata  map[string]interface{}
}

// Edge is the validator's view of a graph edge.
type Edge struct {
	From     string
	To       string
	Weight   float64
	Kind     types.EdgeKind
	Metadata map[string]interface{}
}

// Graph is the in-memory structure the graph builder validates before
// writing it to the graph store (spec §4.G step 6).
type Graph struct {
	Nodes map[string]Node
	Edges []Edge
}

// ValidationResult separates hard failures from advisory findings (spec
// §4.D "All three must report isValid=true before activation").
type ValidationResult struct {
	Errors   []types.Finding
	Warnings []types.Finding
}

// IsValid reports whether the graph may be activated.
func (r ValidationResult) IsValid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) addError(code, message string, from, to string) {
	r.Errors = append(r.Errors, types.Finding{Code: code, Message: message, Severity: types.ERROR, EdgeFrom: from, EdgeTo: to})
}

func (r *ValidationResult) addWarning(code, message string, from, to string) {
	r.Warnings = append(r.Warnings, types.Finding{Code: code, Message: message, Severity: types.WARNING, EdgeFrom: from, EdgeTo: to})
}

// GraphValidator is the shared shape every validation pass implements.
type GraphValidator interface {
	Validate(g *Graph) ValidationResult
}

var ferryKeywords = []string{"паром", "ferry", "переправа", "пристань"}

// ferryExceptions names stops known to be ferry terminals even when neither
// their metadata nor their name carries a recognizable marker.
var ferryExceptions = map[string]bool{
	"stop-lensk-pier": true,
}

// ClassifyStop determines a node's role in the transfer-weight table (spec
// §4.G step 5 getStopType, §4.D ferry classifier).
func ClassifyStop(n Node) types.StopClass {
	if isFerryTerminal(n) {
		return types.StopClassFerryTerminal
	}
	if n.Metadata != nil {
		if isAirport, ok := n.Metadata["isAirport"].(bool); ok && isAirport {
			return types.StopClassAirport
		}
	}
	return types.StopClassGround
}

func isFerryTerminal(n Node) bool {
	if n.Metadata != nil {
		if t, ok := n.Metadata["type"].(string); ok && t == "ferry_terminal" {
			return true
		}
	}
	if ferryExceptions[n.ID] {
		return true
	}
	haystack := strings.ToLower(n.ID + " " + n.Name)
	for _, kw := range ferryKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// StructuralValidator implements spec §4.D's five structural checks.
type StructuralValidator struct{}

// Validate runs the structural checks against g.
func (StructuralValidator) Validate(g *Graph) ValidationResult {
	var result ValidationResult

	adjacency := make(map[string][]string)
	incident := make(map[string]int)

	for _, e := range g.Edges {
		if e.Weight <= 0 || !isFinite(e.Weight) {
			result.addError("INVALID_WEIGHT", "edge weight must be finite and > 0", e.From, e.To)
		}
		if _, ok := g.Nodes[e.From]; !ok {
			result.addError("DANGLING_EDGE", "edge endpoint not in node set", e.From, e.To)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			result.addError("DANGLING_EDGE", "edge endpoint not in node set", e.From, e.To)
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
		adjacency[e.To] = append(adjacency[e.To], e.From)
		incident[e.From]++
		incident[e.To]++
	}

	for id := range g.Nodes {
		if incident[id] == 0 {
			result.addWarning("ISOLATED_NODE", "node has zero incident edges", id, "")
		}
	}

	hubID := findHubNode(g)
	if hubID != "" {
		reached := bfsReachable(adjacency, hubID)
		if len(g.Nodes) > 0 && float64(len(reached))/float64(len(g.Nodes)) < 0.5 {
			result.addWarning("LOW_REACHABILITY", "fewer than 50% of nodes reachable from the hub city", hubID, "")
		}
	}

	components := countComponents(g.Nodes, adjacency)
	if components > 1 {
		result.addWarning("DISCONNECTED_GRAPH", "graph has more than one weakly-connected component", "", "")
	}

	return result
}

func findHubNode(g *Graph) string {
	hub := reference.NormalizeCityName("Якутск")
	for id, n := range g.Nodes {
		if n.CityID == hub {
			return id
		}
	}
	return ""
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func bfsReachable(adjacency map[string][]string, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

func countComponents(nodes map[string]Node, adjacency map[string][]string) int {
	visited := make(map[string]bool, len(nodes))
	components := 0
	for id := range nodes {
		if visited[id] {
			continue
		}
		components++
		for _, n := range bfsReachableList(adjacency, id) {
			visited[n] = true
		}
	}
	return components
}

func bfsReachableList(adjacency map[string][]string, start string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	out := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
				out = append(out, next)
			}
		}
	}
	return out
}

// TransferValidator implements spec §4.D's transfer-edge check.
type TransferValidator struct{}

// Validate checks every TRANSFER edge for equal, non-empty city ids and a
// weight within [30,120].
func (TransferValidator) Validate(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range g.Edges {
		if e.Kind != types.EdgeTransfer {
			continue
		}
		from, to := g.Nodes[e.From], g.Nodes[e.To]
		if from.CityID == "" || to.CityID == "" || from.CityID != to.CityID {
			result.addError("TRANSFER_CITY_MISMATCH", "transfer edge endpoints must share a non-empty city id", e.From, e.To)
			continue
		}
		if e.Weight < 30 || e.Weight > 120 {
			result.addError("TRANSFER_WEIGHT_OUT_OF_RANGE", "transfer edge weight must be within [30,120] minutes", e.From, e.To)
		}
	}
	return result
}

// FerryValidator implements spec §4.D's ferry-edge check. Non-compliant
// ferry edges are recorded as warnings only — they never abort activation.
type FerryValidator struct{}

// Validate checks every FERRY edge for ferry-terminal endpoints and a weight
// within [20,65].
func (FerryValidator) Validate(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range g.Edges {
		if e.Kind != types.EdgeFerry {
			continue
		}
		from, to := g.Nodes[e.From], g.Nodes[e.To]
		if ClassifyStop(from) != types.StopClassFerryTerminal || ClassifyStop(to) != types.StopClassFerryTerminal {
			result.addWarning("FERRY_ENDPOINT_NOT_TERMINAL", "ferry edge endpoint is not classified as a ferry terminal", e.From, e.To)
			continue
		}
		if e.Weight < 20 || e.Weight > 65 {
			result.addWarning("FERRY_WEIGHT_OUT_OF_RANGE", "ferry edge weight must be within [20,65] minutes", e.From, e.To)
		}
	}
	return result
}
