// Package graphbuilder implements the graph-builder worker (spec §4.G): it
// materializes the routable graph from every persisted stop, route, and
// flight, validates it, and publishes the new version atomically.
package graphbuilder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/graphstore"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/model"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/types"
	"github.com/sakha-transit/tripgraph/validators"
	"github.com/sakha-transit/tripgraph/workers/shared"
)

const (
	workerID = "graph-builder"

	defaultEdgeDurationMin = 180
	minEdgeDurationMin     = 1
	maxEdgeDurationMin     = 10000

	ferryWaitSummerMin = 17.5
	ferryWaitWinterMin = 37.5
	ferryFallbackMin   = 180 // clamped into [20,65] below if no schedule

	transferAirportToGround = 90
	transferGroundToAirport = 120
	transferAirportToFerry  = 90
	transferFerryToGround   = 30
	transferGroundToGround  = 60
	transferFallback        = 60
)

// Worker is the graph-builder pipeline stage.
type Worker struct {
	datasets      *repository.DatasetRepository
	graphs        *repository.GraphMetadataRepository
	realStops     *repository.RealStopRepository
	virtualStops  *repository.VirtualStopRepository
	routes        *repository.RouteRepository
	virtualRoutes *repository.VirtualRouteRepository
	flights       *repository.FlightRepository
	store         *graphstore.Store
	ref           *reference.Store
	cfg           config.WorkersConfig
	log           *logging.Logger
}

// New constructs the graph-builder worker.
func New(datasets *repository.DatasetRepository, graphs *repository.GraphMetadataRepository,
	realStops *repository.RealStopRepository, virtualStops *repository.VirtualStopRepository,
	routes *repository.RouteRepository, virtualRoutes *repository.VirtualRouteRepository,
	flights *repository.FlightRepository, store *graphstore.Store, ref *reference.Store,
	cfg config.WorkersConfig, log *logging.Logger) *Worker {
	return &Worker{
		datasets: datasets, graphs: graphs, realStops: realStops, virtualStops: virtualStops,
		routes: routes, virtualRoutes: virtualRoutes, flights: flights, store: store, ref: ref, cfg: cfg, log: log,
	}
}

// ID identifies this worker in outcome envelopes and logs.
func (w *Worker) ID() string { return workerID }

// CanRun reports the spec §4.G precondition: a dataset must exist and no
// graph metadata row may already reference its version.
func (w *Worker) CanRun(ctx context.Context) (bool, string, error) {
	dataset, err := w.datasets.GetLatest(ctx)
	if err != nil {
		return false, "", err
	}
	if dataset == nil {
		return false, "no dataset present", nil
	}
	exists, err := w.graphs.ExistsForDatasetVersion(ctx, dataset.Version)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, "a graph already references this dataset version", nil
	}
	return true, "", nil
}

// Run executes the worker body (spec §4.G steps 1-8).
func (w *Worker) Run(ctx context.Context) (types.WorkerOutcome, error) {
	return shared.RunGuarded(ctx, workerID, w.log, func(ctx context.Context, correlationID string) (types.WorkerOutcome, error) {
		canRun, reason, err := w.CanRun(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}
		if !canRun {
			return types.WorkerOutcome{Success: false, Error: types.ErrCannotRun, Message: reason}, nil
		}
		dataset, err := w.datasets.GetLatest(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}

		nodes, warnings, err := w.loadFilteredNodes(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}
		if len(nodes) < w.minValidStops() {
			return types.WorkerOutcome{
				Success: false, Error: types.ErrInsufficientStops,
				Message: fmt.Sprintf("only %d valid stops, need at least %d", len(nodes), w.minValidStops()),
			}, nil
		}
		if len(nodes) < w.warnStopsThreshold() {
			warnings = append(warnings, fmt.Sprintf("only %d valid stops (warn threshold %d)", len(nodes), w.warnStopsThreshold()))
		}

		routes, virtualRoutes, flights, err := w.loadScheduleData(ctx)
		if err != nil {
			return types.WorkerOutcome{}, err
		}

		edges := w.buildEdges(nodes, routes, virtualRoutes, flights)
		edges = append(edges, w.buildTransferEdges(nodes)...)

		graph := &validators.Graph{Nodes: nodes, Edges: edges}

		structural := validators.StructuralValidator{}.Validate(graph)
		transfer := validators.TransferValidator{}.Validate(graph)
		ferry := validators.FerryValidator{}.Validate(graph)

		if !structural.IsValid() {
			return types.WorkerOutcome{Success: false, Error: types.ErrExecutionError, Message: "structural validation failed: " + firstError(structural)}, nil
		}
		if !transfer.IsValid() {
			return types.WorkerOutcome{Success: false, Error: types.ErrExecutionError, Message: "transfer validation failed: " + firstError(transfer)}, nil
		}
		_ = ferry // ferry findings are warnings only, never abort activation

		start := time.Now()
		version := fmt.Sprintf("graph-v%d", time.Now().UnixMilli())

		nodeIDs := make([]string, 0, len(nodes))
		edgesByFrom := make(map[string][]graphstore.Neighbor)
		for id := range nodes {
			nodeIDs = append(nodeIDs, id)
		}
		for _, e := range edges {
			edgesByFrom[e.From] = append(edgesByFrom[e.From], graphstore.Neighbor{
				NeighborID: e.To, Weight: e.Weight, Metadata: e.Metadata,
			})
		}

		meta := graphstore.Metadata{
			Version: version, DatasetVersion: dataset.Version,
			TotalNodes: len(nodes), TotalEdges: len(edges),
			BuildDurationMs: time.Since(start).Milliseconds(),
		}
		if err := w.store.SaveGraph(ctx, version, nodeIDs, edgesByFrom, meta); err != nil {
			return types.WorkerOutcome{}, err
		}

		metaRow := &model.GraphMetadata{
			BaseEntity:      model.BaseEntity{ID: "graph-" + uuid.NewString()},
			Version:         version,
			DatasetVersion:  dataset.Version,
			TotalNodes:      len(nodes),
			TotalEdges:      len(edges),
			BuildDurationMs: meta.BuildDurationMs,
			StoreKey:        version,
		}
		if err := w.graphs.Create(ctx, metaRow); err != nil {
			return types.WorkerOutcome{}, err
		}
		if err := w.graphs.SetActive(ctx, version); err != nil {
			return types.WorkerOutcome{}, err
		}
		if err := w.store.SetCurrentVersion(ctx, version); err != nil {
			return types.WorkerOutcome{}, err
		}

		stats := w.federalCityStatistics(nodes, edges)

		return types.WorkerOutcome{
			Success: true,
			Message: fmt.Sprintf("built %s: %d nodes, %d edges (%d warnings, %d federal cities reported)",
				version, len(nodes), len(edges), len(warnings), len(stats)),
			DataProcessed: &types.DataProcessed{Added: len(nodes) + len(edges)},
		}, nil
	})
}

func firstError(r validators.ValidationResult) string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

func (w *Worker) minValidStops() int {
	if w.cfg.MinValidStops > 0 {
		return w.cfg.MinValidStops
	}
	return 10
}

func (w *Worker) warnStopsThreshold() int {
	if w.cfg.WarnStopsThreshold > 0 {
		return w.cfg.WarnStopsThreshold
	}
	return 30
}

// loadFilteredNodes loads real and virtual stops and applies the §4.D/§4.F
// stop filter (spec §4.G step 1).
func (w *Worker) loadFilteredNodes(ctx context.Context) (map[string]validators.Node, []string, error) {
	nodes := make(map[string]validators.Node)
	var warnings []string

	// There is no "get all real stops" repository method exposed; the
	// graph builder instead walks the unified reference city list, which
	// covers every populated cityId by construction (spec §4.A).
	for _, city := range append(w.ref.GetAllYakutiaCities(), w.ref.GetAllFederalCities()...) {
		normalized := w.ref.Normalize(city.Name)

		real, err := w.realStops.GetByCityName(ctx, normalized)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range real {
			looksFerry := isFerryLike(s.ID, s.Name)
			metadataType, _ := s.Metadata["type"].(string)
			result := shared.PassesStopFilter(s.ID, s.Name, s.CityID, w.ref.IsCityInReference(s.CityID), looksFerry, metadataType)
			if !result.Admitted {
				warnings = append(warnings, fmt.Sprintf("stop %s rejected: %s", s.ID, result.Reason))
				continue
			}
			nodes[s.ID] = validators.Node{ID: s.ID, CityID: s.CityID, Name: s.Name, Metadata: s.Metadata}
		}

		virtual, err := w.virtualStops.GetByCityName(ctx, normalized)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range virtual {
			result := shared.PassesStopFilter(s.ID, s.Name, s.CityID, w.ref.IsCityInReference(s.CityID), false, "")
			if !result.Admitted {
				warnings = append(warnings, fmt.Sprintf("virtual stop %s rejected: %s", s.ID, result.Reason))
				continue
			}
			nodes[s.ID] = validators.Node{ID: s.ID, CityID: s.CityID, Name: s.Name, IsVirtual: true}
		}
	}

	return nodes, warnings, nil
}

func isFerryLike(id, name string) bool {
	haystack := strings.ToLower(id + " " + name)
	for _, kw := range []string{"паром", "ferry", "переправа", "пристань"} {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (w *Worker) loadScheduleData(ctx context.Context) ([]model.Route, []model.VirtualRoute, []model.Flight, error) {
	routes, err := w.routes.GetAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	virtualRoutes, err := w.virtualRoutes.GetAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	flights, err := w.flights.GetAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return routes, virtualRoutes, flights, nil
}

type routeInfo struct {
	transportType *types.TransportType
	durationMin   *int
	distanceKm    *float64
}

// buildEdges implements spec §4.G step 4: one edge per flight, plus one edge
// per consecutive stop pair in every route's stop sequence, each keyed by
// (from,to,routeId) to avoid duplicates.
func (w *Worker) buildEdges(nodes map[string]validators.Node, routes []model.Route, virtualRoutes []model.VirtualRoute, flights []model.Flight) []validators.Edge {
	routeByID := make(map[string]routeInfo, len(routes))
	for _, r := range routes {
		t := r.TransportType
		routeByID[r.ID] = routeInfo{transportType: &t, durationMin: r.DurationMin, distanceKm: r.DistanceKm}
	}

	seen := make(map[string]bool)
	var edges []validators.Edge

	for _, f := range flights {
		if _, ok := nodes[f.FromStopID]; !ok {
			continue
		}
		if _, ok := nodes[f.ToStopID]; !ok {
			continue
		}
		key := f.FromStopID + "|" + f.ToStopID + "|" + orDirect(f.RouteID)
		if seen[key] {
			continue
		}

		info := routeByID[f.RouteID]
		isFerry := info.transportType != nil && *info.transportType == types.TransportFerry

		if isFerry {
			scheduleMin, hasSchedule := scheduleMinutes(f.DepartureTime, f.ArrivalTime)
			edge, ok := w.buildFerryEdge(nodes, f.FromStopID, f.ToStopID, info, scheduleMin, hasSchedule)
			if !ok {
				continue
			}
			seen[key] = true
			edges = append(edges, edge)
			continue
		}

		weight := flightWeightMinutes(f.DepartureTime, f.ArrivalTime)
		edge := validators.Edge{
			From: f.FromStopID, To: f.ToStopID, Weight: weight, Kind: types.EdgeTransportLink,
			Metadata: map[string]interface{}{"routeId": f.RouteID},
		}
		if info.transportType != nil {
			edge.Metadata["transportType"] = info.transportType.String()
		}
		if info.distanceKm != nil {
			edge.Metadata["distanceKm"] = *info.distanceKm
		}
		seen[key] = true
		edges = append(edges, edge)
	}

	for _, r := range routes {
		edges = append(edges, w.buildSequenceEdges(nodes, r.ID, r.Stops, routeByID[r.ID], seen)...)
	}
	for _, vr := range virtualRoutes {
		if _, ok := nodes[vr.FromStopID]; !ok {
			continue
		}
		if _, ok := nodes[vr.ToStopID]; !ok {
			continue
		}
		key := vr.FromStopID + "|" + vr.ToStopID + "|" + vr.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, validators.Edge{
			From: vr.FromStopID, To: vr.ToStopID, Weight: float64(vr.DurationMin), Kind: types.EdgeTransportLink,
			Metadata: vr.Metadata,
		})
	}

	return edges
}

func orDirect(routeID string) string {
	if routeID == "" {
		return "direct"
	}
	return routeID
}

// buildSequenceEdges adds one edge per consecutive stop pair in a route's
// stop sequence that isn't already covered by a flight-derived edge.
func (w *Worker) buildSequenceEdges(nodes map[string]validators.Node, routeID string, stops []model.RouteStop, info routeInfo, seen map[string]bool) []validators.Edge {
	var edges []validators.Edge
	for i := 0; i+1 < len(stops); i++ {
		from, to := stops[i].StopID, stops[i+1].StopID
		if _, ok := nodes[from]; !ok {
			continue
		}
		if _, ok := nodes[to]; !ok {
			continue
		}
		key := from + "|" + to + "|" + routeID
		if seen[key] {
			continue
		}

		isFerry := info.transportType != nil && *info.transportType == types.TransportFerry
		if isFerry {
			edge, ok := w.buildFerryEdge(nodes, from, to, info, 0, false)
			if !ok {
				continue
			}
			seen[key] = true
			edges = append(edges, edge)
			continue
		}

		weight := 60.0
		if info.durationMin != nil && *info.durationMin > 0 {
			weight = float64(*info.durationMin)
		}
		edge := validators.Edge{From: from, To: to, Weight: weight, Kind: types.EdgeTransportLink, Metadata: map[string]interface{}{"routeId": routeID}}
		if info.transportType != nil {
			edge.Metadata["transportType"] = info.transportType.String()
		}
		seen[key] = true
		edges = append(edges, edge)
	}
	return edges
}

// buildFerryEdge implements the ferry gate: both endpoints must classify as
// ferry terminals, or the edge is dropped with a warning (spec §4.G step 4).
// The base ferry duration comes from the flight's own schedule when one
// exists; otherwise it falls back to the route's durationMinutes clamped to
// [20,65].
func (w *Worker) buildFerryEdge(nodes map[string]validators.Node, from, to string, info routeInfo, scheduleMin float64, hasSchedule bool) (validators.Edge, bool) {
	fromNode, toNode := nodes[from], nodes[to]
	if validators.ClassifyStop(fromNode) != types.StopClassFerryTerminal || validators.ClassifyStop(toNode) != types.StopClassFerryTerminal {
		if w.log != nil {
			w.log.Warn("dropping ferry edge: endpoint is not a ferry terminal", "from", from, "to", to)
		}
		return validators.Edge{}, false
	}

	var base float64
	if hasSchedule {
		base = scheduleMin
	} else {
		fallback := ferryFallbackMin
		if info.durationMin != nil && *info.durationMin > 0 {
			fallback = *info.durationMin
		}
		base = float64(clampInt(fallback, 20, 65))
	}

	wait := ferryWaitWinterMin
	if month := time.Now().Month(); month >= time.April && month <= time.September {
		wait = ferryWaitSummerMin
	}

	edge := validators.Edge{
		From: from, To: to, Weight: base + wait, Kind: types.EdgeFerry,
		Metadata: map[string]interface{}{"transportType": types.TransportFerry.String()},
	}
	return edge, true
}

// scheduleMinutes derives a ferry crossing duration from a flight's
// departure/arrival clock times, wrapping by +24h when negative.
func scheduleMinutes(departure, arrival string) (float64, bool) {
	dep, err1 := parseClockMinutes(departure)
	arr, err2 := parseClockMinutes(arrival)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	diff := arr - dep
	if diff < 0 {
		diff += 24 * 60
	}
	if diff <= 0 {
		return 0, false
	}
	return float64(diff), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// flightWeightMinutes implements the arrival-minus-departure rule, wrapping
// by +24h when negative, defaulting to 180 on parse failure or out-of-range
// results (spec §4.G step 4).
func flightWeightMinutes(departure, arrival string) float64 {
	dep, err1 := parseClockMinutes(departure)
	arr, err2 := parseClockMinutes(arrival)
	if err1 != nil || err2 != nil {
		return defaultEdgeDurationMin
	}
	diff := arr - dep
	if diff < 0 {
		diff += 24 * 60
	}
	if diff < minEdgeDurationMin || diff >= maxEdgeDurationMin {
		return defaultEdgeDurationMin
	}
	return float64(diff)
}

func parseClockMinutes(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock time %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// buildTransferEdges implements spec §4.G step 5: bidirectional TRANSFER
// edges between every pair of stops sharing a non-empty cityId, weighted by
// the airport/ferry/ground classification table.
func (w *Worker) buildTransferEdges(nodes map[string]validators.Node) []validators.Edge {
	byCity := make(map[string][]validators.Node)
	for _, n := range nodes {
		if n.CityID == "" {
			continue
		}
		byCity[n.CityID] = append(byCity[n.CityID], n)
	}

	var edges []validators.Edge
	for _, group := range byCity {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := 0; j < len(group); j++ {
				if i == j {
					continue
				}
				weight := transferWeight(validators.ClassifyStop(group[i]), validators.ClassifyStop(group[j]))
				edges = append(edges, validators.Edge{
					From: group[i].ID, To: group[j].ID, Weight: weight, Kind: types.EdgeTransfer,
				})
			}
		}
	}
	return edges
}

// transferWeight implements the spec §4.G step 5 classification table.
func transferWeight(from, to types.StopClass) float64 {
	switch {
	case from == types.StopClassAirport && to == types.StopClassGround:
		return transferAirportToGround
	case from == types.StopClassGround && to == types.StopClassAirport:
		return transferGroundToAirport
	case from == types.StopClassAirport && to == types.StopClassFerryTerminal:
		return transferAirportToFerry
	case from == types.StopClassFerryTerminal && to == types.StopClassAirport:
		return transferAirportToFerry
	case from == types.StopClassFerryTerminal && to == types.StopClassGround:
		return transferFerryToGround
	case from == types.StopClassGround && to == types.StopClassFerryTerminal:
		return transferFerryToGround
	case from == types.StopClassGround && to == types.StopClassGround:
		return transferGroundToGround
	default:
		return transferFallback
	}
}

// federalCityStatistics implements spec §4.G step 8: per-federal-city node
// count, edge count connecting to Yakutia, and direct hub connectivity.
func (w *Worker) federalCityStatistics(nodes map[string]validators.Node, edges []validators.Edge) map[string]cityStats {
	hubID := findHubNodeID(nodes)
	stats := make(map[string]cityStats)
	yakutia := make(map[string]bool)
	for _, c := range w.ref.GetAllYakutiaCities() {
		yakutia[w.ref.Normalize(c.Name)] = true
	}

	for _, city := range w.ref.GetAllFederalCities() {
		normalized := w.ref.Normalize(city.Name)
		var nodeCount int
		var cityNodeIDs []string
		for _, n := range nodes {
			if n.CityID == normalized {
				nodeCount++
				cityNodeIDs = append(cityNodeIDs, n.ID)
			}
		}

		directToHub := false
		edgesToYakutia := 0
		for _, e := range edges {
			fromInCity := contains(cityNodeIDs, e.From)
			toInCity := contains(cityNodeIDs, e.To)
			if fromInCity && e.To == hubID {
				directToHub = true
			}
			if toInCity && e.From == hubID {
				directToHub = true
			}
			if (fromInCity && yakutia[nodes[e.To].CityID]) || (toInCity && yakutia[nodes[e.From].CityID]) {
				edgesToYakutia++
			}
		}

		stats[normalized] = cityStats{NodeCount: nodeCount, EdgesToYakutia: edgesToYakutia, DirectToHub: directToHub}
	}
	return stats
}

type cityStats struct {
	NodeCount      int
	EdgesToYakutia int
	DirectToHub    bool
}

func findHubNodeID(nodes map[string]validators.Node) string {
	hub := reference.NormalizeCityName("Якутск")
	for id, n := range nodes {
		if n.CityID == hub {
			return id
		}
	}
	return ""
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
