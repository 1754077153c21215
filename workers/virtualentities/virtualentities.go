// Package virtualentities implements the virtual-entities worker (spec
// §4.E): it synthesizes virtual stops, virtual routes, and daily virtual
// flights so that every reference city has at least one graph-eligible stop
// and every pair of inhabited cities has some path between them.
package virtualentities

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/model"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/types"
	"github.com/sakha-transit/tripgraph/workers/shared"
)

const workerID = "virtual-entities"

// Worker is the virtual-entities pipeline stage.
type Worker struct {
	datasets      *repository.DatasetRepository
	realStops     *repository.RealStopRepository
	virtualStops  *repository.VirtualStopRepository
	routes        *repository.RouteRepository
	virtualRoutes *repository.VirtualRouteRepository
	flights       *repository.FlightRepository
	ref           *reference.Store
	cfg           config.WorkersConfig
	log           *logging.Logger
}

// New constructs the virtual-entities worker.
func New(datasets *repository.DatasetRepository, realStops *repository.RealStopRepository,
	virtualStops *repository.VirtualStopRepository, routes *repository.RouteRepository,
	virtualRoutes *repository.VirtualRouteRepository,
	flights *repository.FlightRepository, ref *reference.Store, cfg config.WorkersConfig, log *logging.Logger) *Worker {
	return &Worker{
		datasets: datasets, realStops: realStops, virtualStops: virtualStops, routes: routes,
		virtualRoutes: virtualRoutes, flights: flights, ref: ref, cfg: cfg, log: log,
	}
}

// ID identifies this worker in outcome envelopes and logs.
func (w *Worker) ID() string { return workerID }

// CanRun reports the spec §4.E precondition/idempotence guard: a dataset
// must exist, and no virtual stop may already exist.
func (w *Worker) CanRun(ctx context.Context) (bool, string, error) {
	dataset, err := w.datasets.GetLatest(ctx)
	if err != nil {
		return false, "", err
	}
	if dataset == nil {
		return false, "no dataset present", nil
	}
	hasVirtual, err := w.virtualStops.ExistsAny(ctx)
	if err != nil {
		return false, "", err
	}
	if hasVirtual {
		return false, "virtual stops already exist", nil
	}
	return true, "", nil
}

// Run executes the worker body (spec §4.E steps 1-6).
func (w *Worker) Run(ctx context.Context) (types.WorkerOutcome, error) {
	return shared.RunGuarded(ctx, workerID, w.log, func(ctx context.Context, correlationID string) (types.WorkerOutcome, error) {
		canRun, reason, err := w.CanRun(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}
		if !canRun {
			return types.WorkerOutcome{
				Success: false, Error: types.ErrCannotRun, Message: reason,
			}, nil
		}

		allCities := append(w.ref.GetAllYakutiaCities(), w.ref.GetAllFederalCities()...)

		missing, err := w.findCitiesWithoutRealStops(ctx, allCities)
		if err != nil {
			return types.WorkerOutcome{}, err
		}

		createdStops := w.buildVirtualStops(missing)
		if err := w.virtualStops.SaveBatch(ctx, createdStops); err != nil {
			return types.WorkerOutcome{}, err
		}

		index, err := w.buildCityStopIndex(ctx, allCities, createdStops)
		if err != nil {
			return types.WorkerOutcome{}, err
		}

		hub := findHubStop(index)
		hubRoutes := w.connectHub(hub, createdStops)

		pairRoutes, err := w.ensureCityPairConnectivity(ctx, allCities, index)
		if err != nil {
			return types.WorkerOutcome{}, err
		}

		allNewRoutes := append(hubRoutes, pairRoutes...)
		if err := w.virtualRoutes.SaveBatch(ctx, allNewRoutes); err != nil {
			return types.WorkerOutcome{}, err
		}

		flights := w.generateDailyFlights(allNewRoutes)
		if err := w.flights.SaveBatch(ctx, flights); err != nil {
			return types.WorkerOutcome{}, err
		}

		return types.WorkerOutcome{
			Success:    true,
			Message:    fmt.Sprintf("created %d virtual stops, %d virtual routes, %d virtual flights", len(createdStops), len(allNewRoutes), len(flights)),
			NextWorker: "graph-builder",
			DataProcessed: &types.DataProcessed{
				Added: len(createdStops) + len(allNewRoutes) + len(flights),
			},
		}, nil
	})
}

func (w *Worker) findCitiesWithoutRealStops(ctx context.Context, cities []reference.UnifiedCity) ([]reference.UnifiedCity, error) {
	var missing []reference.UnifiedCity
	for _, c := range cities {
		normalized := w.ref.Normalize(c.Name)
		stops, err := w.realStops.GetByCityName(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if len(stops) == 0 {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

func (w *Worker) buildVirtualStops(missing []reference.UnifiedCity) []model.VirtualStop {
	out := make([]model.VirtualStop, 0, len(missing))
	now := time.Now()
	for _, c := range missing {
		normalized := w.ref.Normalize(c.Name)
		out = append(out, model.VirtualStop{
			BaseEntity: model.BaseEntity{ID: "virtual-stop-" + reference.GenerateStableID(c.Name), CreatedAt: now, UpdatedAt: now},
			Name:       "г. " + c.Name,
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			GridType:   types.GridMainGrid,
			CityID:     normalized,
		})
	}
	return out
}

// stopRef is a city's candidate representative stop, real or virtual.
type stopRef struct {
	id               string
	cityID           string
	isAirport        bool
	isRailwayStation bool
	isVirtual        bool
	lat, lon         float64
}

func (w *Worker) buildCityStopIndex(ctx context.Context, cities []reference.UnifiedCity, created []model.VirtualStop) (map[string][]stopRef, error) {
	index := make(map[string][]stopRef)
	for _, c := range cities {
		normalized := w.ref.Normalize(c.Name)
		real, err := w.realStops.GetByCityName(ctx, normalized)
		if err != nil {
			return nil, err
		}
		for _, s := range real {
			index[normalized] = append(index[normalized], stopRef{id: s.ID, cityID: normalized, isAirport: s.IsAirport, isRailwayStation: s.IsRailwayStation, lat: s.Latitude, lon: s.Longitude})
		}
	}
	for _, vs := range created {
		index[vs.CityID] = append(index[vs.CityID], stopRef{id: vs.ID, cityID: vs.CityID, isVirtual: true, lat: vs.Latitude, lon: vs.Longitude})
	}
	return index, nil
}

// representative picks the preferred stop for a city: airport > railway
// station > first (spec §4.E step 4).
func representative(stops []stopRef) (stopRef, bool) {
	if len(stops) == 0 {
		return stopRef{}, false
	}
	for _, s := range stops {
		if s.isAirport {
			return s, true
		}
	}
	for _, s := range stops {
		if s.isRailwayStation {
			return s, true
		}
	}
	return stops[0], true
}

func findHubStop(index map[string][]stopRef) stopRefOrZero {
	hubCity := reference.NormalizeCityName("Якутск")
	stops := index[hubCity]
	if rep, ok := representative(stops); ok {
		return stopRefOrZero{rep, true}
	}
	return stopRefOrZero{}
}

type stopRefOrZero struct {
	stopRef
	present bool
}

// connectHub creates forward+backward virtual routes between every created
// virtual stop and the hub, or — if no hub stop exists at all — a full mesh
// among the created virtual stops (spec §4.E step 3).
func (w *Worker) connectHub(hub stopRefOrZero, created []model.VirtualStop) []model.VirtualRoute {
	var routes []model.VirtualRoute
	now := time.Now()

	if !hub.present {
		for i := 0; i < len(created); i++ {
			for j := i + 1; j < len(created); j++ {
				routes = append(routes, shuttleLeg(created[i].ID, created[j].ID, created[i].Latitude, created[i].Longitude, created[j].Latitude, created[j].Longitude, true, true, now)...)
			}
		}
		return routes
	}

	for _, vs := range created {
		if vs.ID == hub.id {
			continue
		}
		routes = append(routes, shuttleLeg(vs.ID, hub.id, vs.Latitude, vs.Longitude, hub.lat, hub.lon, true, hub.isVirtual, now)...)
	}
	return routes
}

// routeTypeFor classifies a synthesized leg's endpoints the way spec §3.1
// VirtualRoute.routeType requires. A real<->real leg has no dedicated
// enum value (a genuinely direct real connection belongs in Route, not
// VirtualRoute) so it is recorded as VIRTUAL_TO_VIRTUAL, the catch-all for
// synthesized connectivity.
func routeTypeFor(fromVirtual, toVirtual bool) types.VirtualRouteType {
	switch {
	case fromVirtual && !toVirtual:
		return types.RouteVirtualToReal
	case !fromVirtual && toVirtual:
		return types.RouteRealToVirtual
	default:
		return types.RouteVirtualToVirtual
	}
}

func shuttleLeg(fromID, toID string, lat1, lon1, lat2, lon2 float64, fromVirtual, toVirtual bool, now time.Time) []model.VirtualRoute {
	distance := shared.HaversineKm(lat1, lon1, lat2, lon2)
	duration := shared.ShuttleDurationMinutes(distance)
	forward := model.VirtualRoute{
		BaseEntity:    model.BaseEntity{ID: "virtual-route-" + reference.GenerateStableID(fromID, toID), CreatedAt: now, UpdatedAt: now},
		RouteType:     routeTypeFor(fromVirtual, toVirtual),
		FromStopID:    fromID,
		ToStopID:      toID,
		DistanceKm:    distance,
		DurationMin:   duration,
		TransportMode: types.ModeShuttle,
	}
	backward := forward
	backward.BaseEntity = model.BaseEntity{ID: "virtual-route-" + reference.GenerateStableID(toID, fromID), CreatedAt: now, UpdatedAt: now}
	backward.RouteType = routeTypeFor(toVirtual, fromVirtual)
	backward.FromStopID, backward.ToStopID = toID, fromID
	return []model.VirtualRoute{forward, backward}
}

// ensureCityPairConnectivity implements spec §4.E step 4: for every
// unordered pair of cities that have any stop, create the missing direct
// legs according to the federal/Yakutia classification table.
func (w *Worker) ensureCityPairConnectivity(ctx context.Context, cities []reference.UnifiedCity, index map[string][]stopRef) ([]model.VirtualRoute, error) {
	hubName := "Якутск"
	hubNormalized := reference.NormalizeCityName(hubName)

	present := make([]reference.UnifiedCity, 0, len(cities))
	for _, c := range cities {
		if len(index[w.ref.Normalize(c.Name)]) > 0 {
			present = append(present, c)
		}
	}
	sort.Slice(present, func(i, j int) bool { return present[i].Name < present[j].Name })

	var out []model.VirtualRoute
	now := time.Now()

	for i := 0; i < len(present); i++ {
		for j := i + 1; j < len(present); j++ {
			a, b := present[i], present[j]
			aStops, bStops := index[w.ref.Normalize(a.Name)], index[w.ref.Normalize(b.Name)]
			aRep, _ := representative(aStops)
			bRep, _ := representative(bStops)

			pairConnected, err := w.connected(ctx, []stopRef{aRep}, []stopRef{bRep})
			if err != nil {
				return nil, err
			}
			if pairConnected {
				continue
			}

			switch {
			case a.IsFederalCity && b.IsFederalCity:
				out = append(out, directLeg(aRep.id, bRep.id, types.TransportPlane, 180, aRep.isVirtual, bRep.isVirtual, now)...)
			case !a.IsFederalCity && !b.IsFederalCity:
				distance := shared.HaversineKm(aRep.lat, aRep.lon, bRep.lat, bRep.lon)
				out = append(out, directLeg(aRep.id, bRep.id, types.TransportBus, shared.ShuttleDurationMinutes(distance), aRep.isVirtual, bRep.isVirtual, now)...)
			default:
				// federal <-> Yakutia
				federal, yakutia := aRep, bRep
				if !a.IsFederalCity {
					federal, yakutia = bRep, aRep
				}
				yakutiaNormalized := w.ref.Normalize(yakutiaCityName(a, b))
				if yakutiaNormalized == hubNormalized {
					out = append(out, directLeg(federal.id, yakutia.id, types.TransportPlane, 240, federal.isVirtual, yakutia.isVirtual, now)...)
				} else {
					hubRep, ok := representative(index[hubNormalized])
					if !ok {
						continue
					}
					out = append(out, directLeg(federal.id, hubRep.id, types.TransportPlane, 240, federal.isVirtual, hubRep.isVirtual, now)...)
					out = append(out, directLeg(hubRep.id, yakutia.id, types.TransportBus, 180, hubRep.isVirtual, yakutia.isVirtual, now)...)
				}
			}
		}
	}
	return out, nil
}

func yakutiaCityName(a, b reference.UnifiedCity) string {
	if !a.IsFederalCity {
		return a.Name
	}
	return b.Name
}

// connected reports whether any stop of aStops already has a direct real or
// virtual route to any stop of bStops (spec §4.E step 4: "skip if a direct
// real route or a direct virtual connection already exists between the
// selected main stops"). RouteRepository.ExistsDirect is directional, so
// both orderings are checked; VirtualRouteRepository.ExistsDirect already
// checks both directions itself.
func (w *Worker) connected(ctx context.Context, aStops, bStops []stopRef) (bool, error) {
	for _, a := range aStops {
		for _, b := range bStops {
			realFwd, err := w.routes.ExistsDirect(ctx, a.id, b.id)
			if err != nil {
				return false, err
			}
			if realFwd {
				return true, nil
			}
			realBack, err := w.routes.ExistsDirect(ctx, b.id, a.id)
			if err != nil {
				return false, err
			}
			if realBack {
				return true, nil
			}
			virt, err := w.virtualRoutes.ExistsDirect(ctx, a.id, b.id)
			if err != nil {
				return false, err
			}
			if virt {
				return true, nil
			}
		}
	}
	return false, nil
}

func directLeg(fromID, toID string, transportType types.TransportType, durationMin int, fromVirtual, toVirtual bool, now time.Time) []model.VirtualRoute {
	meta := map[string]interface{}{"transportType": transportType.String()}
	forward := model.VirtualRoute{
		BaseEntity:    model.BaseEntity{ID: "virtual-route-" + reference.GenerateStableID(fromID, toID, transportType.String()), CreatedAt: now, UpdatedAt: now},
		RouteType:     routeTypeFor(fromVirtual, toVirtual),
		FromStopID:    fromID,
		ToStopID:      toID,
		DurationMin:   durationMin,
		TransportMode: types.ModeShuttle,
		Metadata:      meta,
	}
	backward := forward
	backward.BaseEntity = model.BaseEntity{ID: "virtual-route-" + reference.GenerateStableID(toID, fromID, transportType.String()), CreatedAt: now, UpdatedAt: now}
	backward.RouteType = routeTypeFor(toVirtual, fromVirtual)
	backward.FromStopID, backward.ToStopID = toID, fromID
	return []model.VirtualRoute{forward, backward}
}

// generateDailyFlights builds one year of twice-daily departures for every
// virtual route (spec §4.E step 5).
func (w *Worker) generateDailyFlights(routes []model.VirtualRoute) []model.Flight {
	var out []model.Flight
	years := w.cfg.DailyDepartureYears
	if years <= 0 {
		years = 1
	}
	days := years * 365
	now := time.Now()

	for _, route := range routes {
		price := 1000.0
		if route.Metadata != nil {
			if fare, ok := route.Metadata["baseFare"].(float64); ok {
				price = fare
			}
		}
		for day := 0; day < days; day++ {
			for _, dep := range []string{"08:00", "16:00"} {
				out = append(out, model.Flight{
					BaseEntity:    model.BaseEntity{ID: fmt.Sprintf("flight-%s-%d-%s", route.ID, day, dep), CreatedAt: now, UpdatedAt: now},
					FromStopID:    route.FromStopID,
					ToStopID:      route.ToStopID,
					DepartureTime: dep,
					DaysOfWeek:    []int{1, 2, 3, 4, 5, 6, 7},
					RouteID:       route.ID,
					PriceRub:      price,
					IsVirtual:     true,
				})
			}
		}
	}
	return out
}
