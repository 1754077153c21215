package virtualentities

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/model"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/types"
)

func TestRouteTypeForClassification(t *testing.T) {
	if got := routeTypeFor(true, false); got != types.RouteVirtualToReal {
		t.Errorf("virtual->real: got %v", got)
	}
	if got := routeTypeFor(false, true); got != types.RouteRealToVirtual {
		t.Errorf("real->virtual: got %v", got)
	}
	if got := routeTypeFor(true, true); got != types.RouteVirtualToVirtual {
		t.Errorf("virtual->virtual: got %v", got)
	}
	if got := routeTypeFor(false, false); got != types.RouteVirtualToVirtual {
		t.Errorf("real->real fallback: got %v", got)
	}
}

func TestRepresentativePrefersAirportThenRailwayThenFirst(t *testing.T) {
	stops := []stopRef{
		{id: "ground-1"},
		{id: "rail-1", isRailwayStation: true},
		{id: "air-1", isAirport: true},
	}
	rep, ok := representative(stops)
	if !ok || rep.id != "air-1" {
		t.Fatalf("expected airport to win, got %+v", rep)
	}

	withoutAirport := stops[:2]
	rep, ok = representative(withoutAirport)
	if !ok || rep.id != "rail-1" {
		t.Fatalf("expected railway station to win, got %+v", rep)
	}

	rep, ok = representative(nil)
	if ok {
		t.Fatal("expected empty stop list to report not-found")
	}
}

func TestShuttleLegProducesReciprocalPair(t *testing.T) {
	legs := shuttleLeg("a", "b", 62.0, 129.7, 60.0, 130.0, true, true, time.Now())
	if len(legs) != 2 {
		t.Fatalf("expected a forward and backward leg, got %d", len(legs))
	}
	if legs[0].FromStopID != "a" || legs[0].ToStopID != "b" {
		t.Errorf("unexpected forward endpoints: %+v", legs[0])
	}
	if legs[1].FromStopID != "b" || legs[1].ToStopID != "a" {
		t.Errorf("unexpected backward endpoints: %+v", legs[1])
	}
	if legs[0].DistanceKm != legs[1].DistanceKm {
		t.Error("expected both directions to share the same distance")
	}
	if legs[0].ID == legs[1].ID {
		t.Error("expected forward and backward legs to have distinct ids")
	}
}

func TestBuildVirtualStopsGeneratesStablePlaceholderIDs(t *testing.T) {
	w := &Worker{ref: mustStore(t)}
	missing := []reference.UnifiedCity{{Name: "Мирный", Latitude: 62.535, Longitude: 114.0}}
	stops := w.buildVirtualStops(missing)
	if len(stops) != 1 {
		t.Fatalf("expected one virtual stop, got %d", len(stops))
	}
	if stops[0].ID != "virtual-stop-"+reference.GenerateStableID("Мирный") {
		t.Errorf("unexpected id: %s", stops[0].ID)
	}
	if stops[0].GridType != types.GridMainGrid {
		t.Errorf("expected MAIN_GRID, got %s", stops[0].GridType)
	}
}

func TestGenerateDailyFlightsCountsTwoPerDay(t *testing.T) {
	w := &Worker{cfg: testConfig()}
	routes := []model.VirtualRoute{{BaseEntity: model.BaseEntity{ID: "r1"}, FromStopID: "a", ToStopID: "b"}}
	flights := w.generateDailyFlights(routes)
	if len(flights) != 365*2 {
		t.Fatalf("expected 730 flights for one route over one year, got %d", len(flights))
	}
	for _, f := range flights {
		if len(f.DaysOfWeek) != 7 {
			t.Fatalf("expected every day of week admitted, got %v", f.DaysOfWeek)
		}
		if !f.IsVirtual {
			t.Fatal("expected synthesized flight to be marked virtual")
		}
	}
}

func TestGenerateDailyFlightsUsesMetadataBaseFare(t *testing.T) {
	w := &Worker{cfg: testConfig()}
	routes := []model.VirtualRoute{{
		BaseEntity: model.BaseEntity{ID: "r1"}, FromStopID: "a", ToStopID: "b",
		Metadata: map[string]interface{}{"baseFare": 15000.0},
	}}
	flights := w.generateDailyFlights(routes)
	if flights[0].PriceRub != 15000.0 {
		t.Errorf("expected metadata baseFare to override default price, got %.2f", flights[0].PriceRub)
	}
}

func TestConnectedSkipsPairWithExistingRealRoute(t *testing.T) {
	db, mock := newTestDB(t)
	w := &Worker{routes: repository.NewRouteRepository(db), virtualRoutes: repository.NewVirtualRouteRepository(db)}

	mock.ExpectQuery("SELECT EXISTS.*FROM routes").WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := w.connected(context.Background(), []stopRef{{id: "a"}}, []stopRef{{id: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("expected an existing real route to report the pair as connected")
	}
}

func TestConnectedSkipsPairWithExistingVirtualRoute(t *testing.T) {
	db, mock := newTestDB(t)
	w := &Worker{routes: repository.NewRouteRepository(db), virtualRoutes: repository.NewVirtualRouteRepository(db)}

	mock.ExpectQuery("SELECT EXISTS.*FROM routes").WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM routes").WithArgs("b", "a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM virtual_routes").WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := w.connected(context.Background(), []stopRef{{id: "a"}}, []stopRef{{id: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("expected an existing virtual route to report the pair as connected")
	}
}

func TestConnectedReportsFalseWithNoExistingRoute(t *testing.T) {
	db, mock := newTestDB(t)
	w := &Worker{routes: repository.NewRouteRepository(db), virtualRoutes: repository.NewVirtualRouteRepository(db)}

	mock.ExpectQuery("SELECT EXISTS.*FROM routes").WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM routes").WithArgs("b", "a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.*FROM virtual_routes").WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	got, err := w.connected(context.Background(), []stopRef{{id: "a"}}, []stopRef{{id: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatal("expected no existing route to report the pair as unconnected")
	}
}

func newTestDB(t *testing.T) (*repository.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewForTest(conn), mock
}

func testConfig() config.WorkersConfig {
	return config.WorkersConfig{DailyDepartureYears: 1}
}

func mustStore(t *testing.T) *reference.Store {
	t.Helper()
	store, err := reference.Load("../../reference/assets/unified_cities.json", "../../reference/assets/airports.json", "../../reference/assets/suburbs.json")
	if err != nil {
		t.Fatalf("failed to load reference assets: %v", err)
	}
	return store
}
