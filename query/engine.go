package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/errors"
	"github.com/sakha-transit/tripgraph/graphstore"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/reference"
	"github.com/sakha-transit/tripgraph/repository"
	"github.com/sakha-transit/tripgraph/types"
)

// Engine answers route queries against the active graph version (spec §4.H).
// It never mutates the graph store — only the graph-builder writes there.
type Engine struct {
	realStops    *repository.RealStopRepository
	virtualStops *repository.VirtualStopRepository
	flights      *repository.FlightRepository
	graph        graphstore.Reader
	ref          *reference.Store
	cfg          config.QueryConfig
	risk         RiskAssessor
	log          *logging.Logger
}

// New constructs the query engine. risk may be nil: risk annotation is then
// simply omitted from every response (spec §4.H step 7).
func New(realStops *repository.RealStopRepository, virtualStops *repository.VirtualStopRepository,
	flights *repository.FlightRepository, graph graphstore.Reader, ref *reference.Store,
	cfg config.QueryConfig, risk RiskAssessor, log *logging.Logger) *Engine {
	return &Engine{realStops: realStops, virtualStops: virtualStops, flights: flights,
		graph: graph, ref: ref, cfg: cfg, risk: risk, log: log}
}

// errorResponse converts a QueryError into the Response shape the caller
// sees — the engine never returns the error itself (spec §4.H: "the engine
// never throws to the caller"), only its code, message, and missing nodes.
func errorResponse(qerr *errors.QueryError, graphAvailable bool, version string, elapsedMs int64) Response {
	return Response{
		Success:         false,
		GraphAvailable:  graphAvailable,
		GraphVersion:    version,
		ErrorCode:       qerr.Code,
		Error:           qerr.Message,
		MissingNodes:    qerr.MissingNodes,
		ExecutionTimeMs: elapsedMs,
	}
}

// endpoint is the resolved representative stop for one side of a query.
type endpoint struct {
	id       string
	cityID   string
	cityName string
	isReal   bool
}

// Execute runs the full query pipeline (spec §4.H steps 1-8). It always
// returns a Response; every failure, context cancellation included, is
// reported inside it with Success=false and an error code.
func (e *Engine) Execute(ctx context.Context, req Request) Response {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }
	fail := func(qerr *errors.QueryError, graphAvailable bool, version string) Response {
		return errorResponse(qerr, graphAvailable, version, elapsed())
	}

	if err := req.Validate(); err != nil {
		return fail(errors.NewQueryError(types.QErrValidation, err.Error()), false, "")
	}

	if deadline, ok := ctx.Deadline(); ok && time.Now().After(deadline) {
		return fail(errors.NewQueryError(types.QErrDeadlineExceeded, "deadline exceeded before query started"), false, "")
	}

	version, available, err := e.graph.CurrentVersion(ctx)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), false, "")
	}
	if !available {
		return fail(errors.NewQueryError(types.QErrGraphUnavailable, "no active graph version; the pipeline has not published a graph yet"), false, "")
	}

	from, err := e.resolveCity(ctx, req.FromCity)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}
	if from == nil {
		return fail(errors.NewQueryError(types.QErrNoStopsFound, fmt.Sprintf("No stops found for city %q", req.FromCity)), true, version)
	}
	to, err := e.resolveCity(ctx, req.ToCity)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}
	if to == nil {
		return fail(errors.NewQueryError(types.QErrNoStopsFound, fmt.Sprintf("No stops found for city %q", req.ToCity)), true, version)
	}

	var missing []string
	hasFrom, err := e.graph.HasNode(ctx, version, from.id)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}
	if !hasFrom {
		missing = append(missing, from.id)
	}
	hasTo, err := e.graph.HasNode(ctx, version, to.id)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}
	if !hasTo {
		missing = append(missing, to.id)
	}
	if len(missing) > 0 {
		qerr := errors.NewQueryError(types.QErrGraphOutOfSync, "graph out of sync with relational store").WithMissingNodes(missing...)
		return fail(qerr, true, version)
	}

	best, ok, err := dijkstra(ctx, e.graph, version, from.id, to.id, nil)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}
	if !ok {
		return fail(errors.NewQueryError(types.QErrNoRoute, fmt.Sprintf("no route from %s to %s", from.id, to.id)), true, version)
	}

	primary, err := e.hydrate(ctx, version, best.Nodes, req, from, to)
	if err != nil {
		return fail(errors.NewQueryError(types.QErrInternal, err.Error()).WithCause(err), true, version)
	}

	alternatives := e.findAlternatives(ctx, version, from.id, to.id, best, req, from, to)

	resp := Response{
		Success:         true,
		Routes:          []Route{primary},
		GraphAvailable:  true,
		GraphVersion:    version,
		ExecutionTimeMs: elapsed(),
	}
	if len(alternatives) > 0 {
		resp.Alternatives = alternatives
	}

	if e.risk != nil {
		if assessment, err := e.risk.AssessRisk(buildCanonicalRoute(primary)); err == nil {
			resp.RiskAssessment = assessment
		} else if e.log != nil {
			e.log.WithError(err).Warn("risk annotation failed, omitting from response")
		}
	}

	if e.log != nil {
		e.log.QueryCompleted(req.FromCity, req.ToCity, true, time.Since(start))
	}
	return resp
}

// resolveCity implements spec §4.H step 2: real stops first, virtual stops
// as the fallback, first match wins as the representative endpoint.
func (e *Engine) resolveCity(ctx context.Context, cityName string) (*endpoint, error) {
	normalized := e.ref.Normalize(cityName)

	realStops, err := e.realStops.GetByCityName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(realStops) > 0 {
		s := realStops[0]
		return &endpoint{id: s.ID, cityID: s.CityID, cityName: e.ref.DisplayCityName(s.CityID, s.Name), isReal: true}, nil
	}

	virtualStops, err := e.virtualStops.GetByCityName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(virtualStops) > 0 {
		s := virtualStops[0]
		return &endpoint{id: s.ID, cityID: s.CityID, cityName: e.ref.DisplayCityName(s.CityID, s.Name), isReal: false}, nil
	}

	return nil, nil
}

// hydrate implements spec §4.H step 5: fan out per-segment lookups
// concurrently, then assemble the route totals.
func (e *Engine) hydrate(ctx context.Context, version string, path []string, req Request, from, to *endpoint) (Route, error) {
	segments := make([]Segment, len(path)-1)
	weekday := isoWeekday(req.Date)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i+1 < len(path); i++ {
		i := i
		fromID, toID := path[i], path[i+1]
		g.Go(func() error {
			seg, err := e.hydrateSegment(gctx, version, fromID, toID, weekday)
			if err != nil {
				return err
			}
			segments[i] = seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Route{}, err
	}

	kept := make([]Segment, 0, len(segments))
	var totalDistance, totalDuration, totalPrice float64
	for _, seg := range segments {
		if seg.FromStopID == "" {
			if e.log != nil {
				e.log.Warn("dropping segment with no edge weight", "from", seg.FromStopID, "to", seg.ToStopID)
			}
			continue
		}
		kept = append(kept, seg)
		totalDistance += seg.DistanceKm
		totalDuration += seg.DurationMin
		totalPrice += seg.PriceRub
	}

	return Route{
		Segments:      kept,
		TotalDistance: totalDistance,
		TotalDuration: totalDuration,
		TotalPrice:    totalPrice * float64(req.Passengers),
		FromCity:      from.cityName,
		ToCity:        to.cityName,
		DepartureDate: req.Date.Format("2006-01-02"),
	}, nil
}

// hydrateSegment fetches weight, metadata, and the first covering flight for
// one graph edge (spec §4.H step 5).
func (e *Engine) hydrateSegment(ctx context.Context, version, fromID, toID string, weekday int) (Segment, error) {
	weight, ok, err := e.graph.GetEdgeWeight(ctx, version, fromID, toID)
	if err != nil {
		return Segment{}, err
	}
	if !ok {
		return Segment{}, nil
	}

	metadata, _, err := e.graph.GetEdgeMetadata(ctx, version, fromID, toID)
	if err != nil {
		return Segment{}, err
	}

	seg := Segment{FromStopID: fromID, ToStopID: toID, DurationMin: weight}
	if metadata != nil {
		if tt, ok := metadata["transportType"].(string); ok {
			seg.TransportType = types.ParseTransportType(tt)
		}
		if dk, ok := metadata["distanceKm"].(float64); ok {
			seg.DistanceKm = dk
		}
	}

	flights, err := e.flights.GetBetweenStops(ctx, fromID, toID, weekday)
	if err != nil {
		return Segment{}, err
	}
	if len(flights) > 0 {
		f := flights[0]
		seg.FlightID = f.ID
		seg.DepartureTime = f.DepartureTime
		seg.ArrivalTime = f.ArrivalTime
		seg.PriceRub = f.PriceRub
		if f.TransportType != nil {
			seg.TransportType = *f.TransportType
		}
	}

	return seg, nil
}

// findAlternatives implements spec §4.H step 6: up to cfg.MaxAlternatives
// re-runs excluding every edge of the currently best-known path, deduplicated
// by path-key and sorted by total duration ascending.
func (e *Engine) findAlternatives(ctx context.Context, version, startID, endID string, best pathResult, req Request, from, to *endpoint) []Route {
	maxAlts := e.cfg.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 2
	}

	seen := map[string]bool{pathKey(best.Nodes): true}
	excluded := map[string]bool{}
	for _, ek := range pathEdges(best.Nodes) {
		excluded[ek] = true
	}

	var alternatives []Route
	for len(alternatives) < maxAlts {
		next, ok, err := dijkstra(ctx, e.graph, version, startID, endID, excluded)
		if err != nil || !ok {
			break
		}
		key := pathKey(next.Nodes)
		if seen[key] {
			break
		}
		seen[key] = true

		route, err := e.hydrate(ctx, version, next.Nodes, req, from, to)
		if err == nil {
			alternatives = append(alternatives, route)
		}

		for _, ek := range pathEdges(next.Nodes) {
			excluded[ek] = true
		}
	}

	sort.Slice(alternatives, func(i, j int) bool { return alternatives[i].TotalDuration < alternatives[j].TotalDuration })
	return alternatives
}

// isoWeekday converts a calendar date to the {1..7, Monday..Sunday} scale
// Flight.DaysOfWeek uses (spec §3.1 Flight.daysOfWeek).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
