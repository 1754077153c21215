// Package model defines the persisted entities of the transportation graph
// pipeline (spec §3): datasets, real and virtual stops, real and virtual
// routes, flights, and graph metadata. Every entity embeds BaseEntity the
// way the teacher corpus's NetEX objects embedded a common base, carrying
// identity and timestamps rather than XML plumbing.
package model

import (
	"fmt"
	"time"

	"github.com/sakha-transit/tripgraph/types"
)

// BaseEntity carries the fields every persisted entity shares.
type BaseEntity struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Dataset is the metadata row for one ingested snapshot (spec §3.1).
type Dataset struct {
	BaseEntity
	NumericID         int64               `json:"numericId" db:"numeric_id"`
	Version           string              `json:"version" db:"version"`
	Source            types.DatasetSource `json:"source" db:"source"`
	QualityScore      float64             `json:"qualityScore" db:"quality_score"`
	StopCount         int                 `json:"stopCount" db:"stop_count"`
	RouteCount        int                 `json:"routeCount" db:"route_count"`
	FlightCount       int                 `json:"flightCount" db:"flight_count"`
	VirtualStopCount  int                 `json:"virtualStopCount" db:"virtual_stop_count"`
	VirtualRouteCount int                 `json:"virtualRouteCount" db:"virtual_route_count"`
	ContentHash       string              `json:"contentHash" db:"content_hash"`
	Active            bool                `json:"active" db:"active"`
}

// Validate enforces the quality-score bound from spec §3.1.
func (d *Dataset) Validate() error {
	if d.QualityScore < 0 || d.QualityScore > 100 {
		return fmt.Errorf("dataset %s: qualityScore %.2f out of [0,100]", d.ID, d.QualityScore)
	}
	if d.Version == "" {
		return fmt.Errorf("dataset %s: version must not be empty", d.ID)
	}
	return nil
}

// RealStop is a stop ingested from the external transport dataset.
type RealStop struct {
	BaseEntity
	Name             string                 `json:"name" db:"name"`
	Latitude         float64                `json:"latitude" db:"latitude"`
	Longitude        float64                `json:"longitude" db:"longitude"`
	CityID           string                 `json:"cityId" db:"city_id"`
	IsAirport        bool                   `json:"isAirport" db:"is_airport"`
	IsRailwayStation bool                   `json:"isRailwayStation" db:"is_railway_station"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// Validate enforces the coordinate bounds from spec §3.2.
func (s *RealStop) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stop %s: name must not be empty", s.ID)
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("stop %s: latitude %.6f out of [-90,90]", s.ID, s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("stop %s: longitude %.6f out of [-180,180]", s.ID, s.Longitude)
	}
	return nil
}

// NearbyStop records a real stop near a synthesized VirtualStop, along with
// the distance used to rank it (spec §3.1 VirtualStop.nearbyRealStops).
type NearbyStop struct {
	StopID     string  `json:"stopId"`
	DistanceKm float64 `json:"distanceKm"`
}

// VirtualStop is synthesized by the virtual-entities worker to guarantee
// every reference city has at least one graph-eligible stop (spec §4.E).
type VirtualStop struct {
	BaseEntity
	Name             string       `json:"name" db:"name"`
	Latitude         float64      `json:"latitude" db:"latitude"`
	Longitude        float64      `json:"longitude" db:"longitude"`
	GridType         types.GridType `json:"gridType" db:"grid_type"`
	CityID           string       `json:"cityId" db:"city_id"`
	GridRow          *int         `json:"gridRow,omitempty" db:"grid_row"`
	GridCol          *int         `json:"gridCol,omitempty" db:"grid_col"`
	NearbyRealStops  []NearbyStop `json:"nearbyRealStops,omitempty" db:"-"`
}

// Route is a scheduled service ingested from the external dataset, or
// synthesized for the federal hub-mesh (air-route worker).
type Route struct {
	BaseEntity
	TransportType types.TransportType    `json:"transportType" db:"transport_type"`
	FromStopID    string                 `json:"fromStopId" db:"from_stop_id"`
	ToStopID      string                 `json:"toStopId" db:"to_stop_id"`
	Stops         []RouteStop            `json:"stops" db:"-"`
	DurationMin   *int                   `json:"durationMinutes,omitempty" db:"duration_minutes"`
	DistanceKm    *float64               `json:"distanceKm,omitempty" db:"distance_km"`
	Operator      string                 `json:"operator,omitempty" db:"operator"`
	RouteNumber   string                 `json:"routeNumber,omitempty" db:"route_number"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// RouteStop is one member of a Route's ordered stop sequence.
type RouteStop struct {
	StopID   string `json:"stopId"`
	Sequence int    `json:"sequence"`
}

// Validate enforces the stop-sequence invariant from spec §3.1.
func (r *Route) Validate() error {
	if len(r.Stops) < 2 {
		return fmt.Errorf("route %s: stops sequence must have at least 2 entries", r.ID)
	}
	for i, st := range r.Stops {
		if st.Sequence != i+1 {
			return fmt.Errorf("route %s: stop sequence must be numbered sequentially from 1", r.ID)
		}
	}
	return nil
}

// VirtualRoute is a synthesized connectivity leg (spec §3.1 VirtualRoute).
type VirtualRoute struct {
	BaseEntity
	RouteType     types.VirtualRouteType     `json:"routeType" db:"route_type"`
	FromStopID    string                     `json:"fromStopId" db:"from_stop_id"`
	ToStopID      string                     `json:"toStopId" db:"to_stop_id"`
	DistanceKm    float64                    `json:"distanceKm" db:"distance_km"`
	DurationMin   int                        `json:"durationMinutes" db:"duration_minutes"`
	TransportMode types.VirtualTransportMode `json:"transportMode" db:"transport_mode"`
	Metadata      map[string]interface{}     `json:"metadata,omitempty" db:"metadata"`
}

// Validate enforces the non-negative and non-self-loop invariants.
func (vr *VirtualRoute) Validate() error {
	if vr.FromStopID == vr.ToStopID {
		return fmt.Errorf("virtual route %s: fromStopId must differ from toStopId", vr.ID)
	}
	if vr.DistanceKm < 0 {
		return fmt.Errorf("virtual route %s: distanceKm must be non-negative", vr.ID)
	}
	if vr.DurationMin < 0 {
		return fmt.Errorf("virtual route %s: durationMinutes must be non-negative", vr.ID)
	}
	return nil
}

// Flight is a scheduled departure, real or synthesized (spec §3.1 Flight).
type Flight struct {
	BaseEntity
	FromStopID    string                 `json:"fromStopId" db:"from_stop_id"`
	ToStopID      string                 `json:"toStopId" db:"to_stop_id"`
	DepartureTime string                 `json:"departureTime" db:"departure_time"` // HH:MM
	ArrivalTime   string                 `json:"arrivalTime" db:"arrival_time"`     // HH:MM
	DaysOfWeek    []int                  `json:"daysOfWeek" db:"days_of_week"`
	RouteID       string                 `json:"routeId,omitempty" db:"route_id"`
	PriceRub      float64                `json:"priceRub" db:"price_rub"`
	IsVirtual     bool                   `json:"isVirtual" db:"is_virtual"`
	TransportType *types.TransportType   `json:"transportType,omitempty" db:"transport_type"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// GraphMetadata is the relational-store record for one materialized graph
// version (spec §3.1).
type GraphMetadata struct {
	BaseEntity
	Version         string `json:"version" db:"version"`
	DatasetVersion  string `json:"datasetVersion" db:"dataset_version"`
	TotalNodes      int    `json:"totalNodes" db:"total_nodes"`
	TotalEdges      int    `json:"totalEdges" db:"total_edges"`
	BuildDurationMs int64  `json:"buildDurationMs" db:"build_duration_ms"`
	StoreKey        string `json:"storeKey" db:"store_key"`
	BackupPath      string `json:"backupPath,omitempty" db:"backup_path"`
	Active          bool   `json:"active" db:"active"`
}
