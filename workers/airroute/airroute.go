// Package airroute implements the air-route worker (spec §4.F): it connects
// every federal city to the Yakutsk hub by a direct PLANE route and a
// weekly flight timetable, skipping any direction a real route already
// covers.
package airroute

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/model"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/types"
	"github.com/sakha-transit/tripgraph/workers/shared"
)

const (
	workerID          = "air-route"
	routeDurationMin  = 240
	routeDistanceKm   = 2000.0
	routeBaseFareRub  = 15000.0
	flightPriceRub    = 15000.0
	directionOutbound = "outbound"
	directionInbound  = "inbound"
)

var departureTimes = []string{"08:00", "14:00", "20:00"}

// Worker is the air-route pipeline stage.
type Worker struct {
	datasets  *repository.DatasetRepository
	realStops *repository.RealStopRepository
	routes    *repository.RouteRepository
	flights   *repository.FlightRepository
	ref       *reference.Store
	log       *logging.Logger
}

// New constructs the air-route worker.
func New(datasets *repository.DatasetRepository, realStops *repository.RealStopRepository,
	routes *repository.RouteRepository, flights *repository.FlightRepository,
	ref *reference.Store, log *logging.Logger) *Worker {
	return &Worker{datasets: datasets, realStops: realStops, routes: routes, flights: flights, ref: ref, log: log}
}

// ID identifies this worker in outcome envelopes and logs.
func (w *Worker) ID() string { return workerID }

// CanRun reports the spec §4.F precondition: a dataset must exist.
func (w *Worker) CanRun(ctx context.Context) (bool, string, error) {
	dataset, err := w.datasets.GetLatest(ctx)
	if err != nil {
		return false, "", err
	}
	if dataset == nil {
		return false, "no dataset present", nil
	}
	return true, "", nil
}

// Run executes the worker body (spec §4.F steps 1-6).
func (w *Worker) Run(ctx context.Context) (types.WorkerOutcome, error) {
	return shared.RunGuarded(ctx, workerID, w.log, func(ctx context.Context, correlationID string) (types.WorkerOutcome, error) {
		canRun, reason, err := w.CanRun(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}
		if !canRun {
			return types.WorkerOutcome{Success: false, Error: types.ErrNoDataset, Message: reason}, nil
		}

		hub, err := w.resolveHubStop(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}
		if hub == nil {
			return types.WorkerOutcome{Success: false, Error: types.ErrNoHubStops, Message: "no hub stop for normalized Якутск"}, nil
		}

		var createdRoutes []model.Route
		var createdFlights []model.Flight
		skipped := 0

		for _, city := range w.ref.GetAllFederalCities() {
			cityStop, err := w.resolveFederalCityStop(ctx, city.Name)
			if err != nil {
				return types.WorkerOutcome{}, err
			}
			if cityStop == nil {
				skipped++
				continue
			}

			for _, direction := range []string{directionOutbound, directionInbound} {
				from, to := hub, cityStop
				if direction == directionInbound {
					from, to = cityStop, hub
				}

				exists, err := w.routes.ExistsDirect(ctx, from.ID, to.ID)
				if err != nil {
					return types.WorkerOutcome{}, err
				}
				if exists {
					skipped++
					continue
				}

				route := buildRoute(from, to, direction, w.ref)
				createdRoutes = append(createdRoutes, route)
				createdFlights = append(createdFlights, buildWeeklyTimetable(route)...)
			}
		}

		if err := w.routes.SaveBatch(ctx, createdRoutes); err != nil {
			return types.WorkerOutcome{}, err
		}
		if err := w.flights.SaveBatch(ctx, createdFlights); err != nil {
			return types.WorkerOutcome{}, err
		}

		if len(createdRoutes) == 0 {
			return types.WorkerOutcome{Success: true, Message: "all routes already exist"}, nil
		}

		return types.WorkerOutcome{
			Success: true,
			Message: fmt.Sprintf("created %d air routes, %d flights (%d directions skipped)", len(createdRoutes), len(createdFlights), skipped),
			DataProcessed: &types.DataProcessed{
				Added: len(createdRoutes) + len(createdFlights),
			},
		}, nil
	})
}

// resolveHubStop prefers an airport-tagged stop in Yakutsk, falling back to
// the first stop of the normalized city (spec §4.F step 1).
func (w *Worker) resolveHubStop(ctx context.Context) (*model.RealStop, error) {
	hubCity := reference.NormalizeCityName("Якутск")
	stops, err := w.realStops.GetByCityName(ctx, hubCity)
	if err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, nil
	}
	for i := range stops {
		if stops[i].IsAirport {
			return &stops[i], nil
		}
	}
	return &stops[0], nil
}

// resolveFederalCityStop picks the first stop of cityName that passes the
// stop-filter rule (spec §4.F step 2).
func (w *Worker) resolveFederalCityStop(ctx context.Context, cityName string) (*model.RealStop, error) {
	normalized := w.ref.Normalize(cityName)
	stops, err := w.realStops.GetByCityName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	for i := range stops {
		s := stops[i]
		looksFerry := looksFerryLike(s.ID, s.Name)
		metadataType, _ := s.Metadata["type"].(string)
		result := shared.PassesStopFilter(s.ID, s.Name, s.CityID, w.ref.IsCityInReference(s.CityID), looksFerry, metadataType)
		if result.Admitted {
			return &s, nil
		}
	}
	return nil, nil
}

func looksFerryLike(id, name string) bool {
	haystack := strings.ToLower(id + " " + name)
	for _, kw := range []string{"паром", "ferry", "переправа", "пристань"} {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// buildRoute constructs the deterministic air route between two stops (spec
// §4.F step 4).
func buildRoute(from, to *model.RealStop, direction string, ref *reference.Store) model.Route {
	normFrom, normTo := ref.Normalize(from.CityID), ref.Normalize(to.CityID)
	distance := routeDistanceKm
	duration := routeDurationMin
	return model.Route{
		BaseEntity:    model.BaseEntity{ID: fmt.Sprintf("air-route-%s-%s-%s", normFrom, normTo, direction)},
		TransportType: types.TransportPlane,
		FromStopID:    from.ID,
		ToStopID:      to.ID,
		Stops: []model.RouteStop{
			{StopID: from.ID, Sequence: 1},
			{StopID: to.ID, Sequence: 2},
		},
		DurationMin: &duration,
		DistanceKm:  &distance,
		Operator:    "air-route-synthesis",
		Metadata:    map[string]interface{}{"baseFare": routeBaseFareRub},
	}
}

// buildWeeklyTimetable generates the {1..7} x {08:00,14:00,20:00} Flight
// grid for a single route (spec §4.F step 5).
func buildWeeklyTimetable(route model.Route) []model.Flight {
	out := make([]model.Flight, 0, 7*len(departureTimes))
	transportType := types.TransportPlane
	for d := 1; d <= 7; d++ {
		for _, dep := range departureTimes {
			arrival := addMinutesWrap(dep, routeDurationMin)
			out = append(out, model.Flight{
				BaseEntity:    model.BaseEntity{ID: fmt.Sprintf("flight-%s-%d-%s", route.ID, d, strings.ReplaceAll(dep, ":", ""))},
				FromStopID:    route.FromStopID,
				ToStopID:      route.ToStopID,
				DepartureTime: dep,
				ArrivalTime:   arrival,
				DaysOfWeek:    []int{d},
				RouteID:       route.ID,
				PriceRub:      flightPriceRub,
				IsVirtual:     false,
				TransportType: &transportType,
			})
		}
	}
	return out
}

// addMinutesWrap adds minutes to an "HH:MM" clock time, wrapping the hour
// component modulo 24 (spec §4.F step 5).
func addMinutesWrap(hhmm string, minutes int) string {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return hhmm
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return hhmm
	}
	total := h*60 + m + minutes
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
