package query

import "github.com/sakha-transit/tripgraph/types"

// Segment is one hydrated hop of a route: a single graph edge plus whatever
// flight timetable entry covers it, if any (spec §4.H step 5).
type Segment struct {
	FromStopID    string             `json:"fromStopId"`
	ToStopID      string             `json:"toStopId"`
	DistanceKm    float64            `json:"distanceKm"`
	DurationMin   float64            `json:"durationMinutes"`
	PriceRub      float64            `json:"priceRub"`
	TransportType types.TransportType `json:"transportType"`
	FlightID      string             `json:"flightId,omitempty"`
	DepartureTime string             `json:"departureTime,omitempty"`
	ArrivalTime   string             `json:"arrivalTime,omitempty"`
}

// Route is one full itinerary from the origin to the destination
// representative stop (spec §4.H step 8).
type Route struct {
	Segments       []Segment `json:"segments"`
	TotalDistance  float64   `json:"totalDistance"`
	TotalDuration  float64   `json:"totalDuration"`
	TotalPrice     float64   `json:"totalPrice"`
	FromCity       string    `json:"fromCity"`
	ToCity         string    `json:"toCity"`
	DepartureDate  string    `json:"departureDate"`
}

// Response is the uniform envelope the query engine returns for every
// request, success or failure (spec §6 "Query response").
type Response struct {
	Success         bool                   `json:"success"`
	Routes          []Route                `json:"routes,omitempty"`
	Alternatives    []Route                `json:"alternatives,omitempty"`
	RiskAssessment  map[string]interface{} `json:"riskAssessment,omitempty"`
	ExecutionTimeMs int64                  `json:"executionTimeMs"`
	GraphAvailable  bool                   `json:"graphAvailable"`
	GraphVersion    string                 `json:"graphVersion,omitempty"`
	Error           string                 `json:"error,omitempty"`
	ErrorCode       types.QueryErrorCode   `json:"errorCode,omitempty"`
	MissingNodes    []string               `json:"missingNodes,omitempty"`
}
