package airroute

import (
	"testing"

	"github.com/sakha-transit/tripgraph/model"
	"github.com/sakha-transit/tripgraph/reference"
)

func TestAddMinutesWrapHandlesMidnightRollover(t *testing.T) {
	cases := map[string]string{
		"08:00": "12:00",
		"20:00": "00:00",
		"22:30": "02:30",
	}
	for in, want := range cases {
		if got := addMinutesWrap(in, routeDurationMin); got != want {
			t.Errorf("addMinutesWrap(%q, 240) = %q, want %q", in, got, want)
		}
	}
}

func TestAddMinutesWrapMalformedInputPassesThrough(t *testing.T) {
	if got := addMinutesWrap("garbage", 240); got != "garbage" {
		t.Errorf("expected malformed input to pass through unchanged, got %q", got)
	}
}

func TestLooksFerryLikeMatchesKeywords(t *testing.T) {
	if !looksFerryLike("stop-1", "Паромная переправа") {
		t.Error("expected ferry keyword match")
	}
	if looksFerryLike("stop-2", "Автовокзал") {
		t.Error("expected no ferry match for an ordinary bus station")
	}
}

func TestBuildWeeklyTimetableCoversEveryDayAndDeparture(t *testing.T) {
	route := model.Route{BaseEntity: model.BaseEntity{ID: "air-route-a-b-outbound"}, FromStopID: "a", ToStopID: "b"}
	flights := buildWeeklyTimetable(route)
	if len(flights) != 7*3 {
		t.Fatalf("expected 21 flights, got %d", len(flights))
	}
	for _, f := range flights {
		if f.PriceRub != flightPriceRub {
			t.Errorf("expected fixed price %.0f, got %.0f", flightPriceRub, f.PriceRub)
		}
		if f.IsVirtual {
			t.Error("air-route flights must not be marked virtual")
		}
		if len(f.DaysOfWeek) != 1 {
			t.Errorf("expected exactly one day per flight row, got %v", f.DaysOfWeek)
		}
	}
}

func TestBuildRouteProducesDeterministicID(t *testing.T) {
	ref := mustStore(t)
	from := &model.RealStop{BaseEntity: model.BaseEntity{ID: "stop-hub"}, CityID: "якутск"}
	to := &model.RealStop{BaseEntity: model.BaseEntity{ID: "stop-city"}, CityID: "москва"}

	route := buildRoute(from, to, directionOutbound, ref)
	if route.ID != "air-route-якутск-москва-outbound" {
		t.Errorf("unexpected route id: %s", route.ID)
	}
	if len(route.Stops) != 2 || route.Stops[0].Sequence != 1 || route.Stops[1].Sequence != 2 {
		t.Errorf("expected a two-stop sequential route, got %+v", route.Stops)
	}
	if *route.DurationMin != routeDurationMin {
		t.Errorf("expected duration %d, got %d", routeDurationMin, *route.DurationMin)
	}
}

func mustStore(t *testing.T) *reference.Store {
	t.Helper()
	store, err := reference.Load("../../reference/assets/unified_cities.json", "../../reference/assets/airports.json", "../../reference/assets/suburbs.json")
	if err != nil {
		t.Fatalf("failed to load reference assets: %v", err)
	}
	return store
}
