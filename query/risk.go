package query

import "github.com/sakha-transit/tripgraph/types"

// BuiltRoute is the canonical shape handed to the external risk function
// (spec §4.H step 7): enough of the itinerary to score it without exposing
// internal segment/node representations.
type BuiltRoute struct {
	Segments       []Segment
	TransferCount  int
	TransportTypes []types.TransportType
	DepartureTime  string
	ArrivalTime    string
}

// RiskAssessor is the narrow external collaborator that scores a built
// route. It is never implemented in this module — the risk-scoring
// algorithm itself is out of scope (spec §1 Non-goals) — callers wire in
// their own implementation.
type RiskAssessor interface {
	AssessRisk(route BuiltRoute) (map[string]interface{}, error)
}

// buildCanonicalRoute assembles the BuiltRoute a RiskAssessor consumes from
// a hydrated Route (spec §4.H step 7).
func buildCanonicalRoute(r Route) BuiltRoute {
	built := BuiltRoute{Segments: r.Segments}
	if len(r.Segments) > 0 {
		built.TransferCount = len(r.Segments) - 1
		built.DepartureTime = r.Segments[0].DepartureTime
		built.ArrivalTime = r.Segments[len(r.Segments)-1].ArrivalTime
	}
	seen := make(map[types.TransportType]bool)
	for _, s := range r.Segments {
		if !seen[s.TransportType] {
			seen[s.TransportType] = true
			built.TransportTypes = append(built.TransportTypes, s.TransportType)
		}
	}
	return built
}
