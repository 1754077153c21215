package model

import (
	"testing"

	"github.com/sakha-transit/tripgraph/types"
)

func TestRealStopValidateRejectsOutOfRangeCoordinates(t *testing.T) {
	s := &RealStop{BaseEntity: BaseEntity{ID: "stop-1"}, Name: "Якутск", Latitude: 200, Longitude: 0}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for latitude out of range")
	}
}

func TestRealStopValidateAcceptsBoundary(t *testing.T) {
	s := &RealStop{BaseEntity: BaseEntity{ID: "stop-1"}, Name: "Якутск", Latitude: 90, Longitude: -180}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected boundary coordinates to validate, got %v", err)
	}
}

func TestRouteValidateRequiresSequentialStops(t *testing.T) {
	r := &Route{
		BaseEntity:    BaseEntity{ID: "route-1"},
		TransportType: types.TransportPlane,
		Stops: []RouteStop{
			{StopID: "a", Sequence: 1},
			{StopID: "b", Sequence: 3},
		},
	}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for non-sequential stop numbering")
	}
}

func TestVirtualRouteValidateRejectsSelfLoop(t *testing.T) {
	vr := &VirtualRoute{BaseEntity: BaseEntity{ID: "vr-1"}, FromStopID: "x", ToStopID: "x"}
	if err := vr.Validate(); err == nil {
		t.Fatal("expected error for self-loop virtual route")
	}
}

func TestDatasetValidateRejectsBadQualityScore(t *testing.T) {
	d := &Dataset{BaseEntity: BaseEntity{ID: "ds-1"}, Version: "v1", QualityScore: 150}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for quality score above 100")
	}
}
