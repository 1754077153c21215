// Package shared holds the worker interface and helper routines common to
// the virtual-entities, air-route, and graph-builder workers (spec §4.E/F/G):
// the outcome envelope, the Haversine distance estimate, and the stop-filter
// rule every stop admitted to the graph or to synthesis must pass.
package shared

import (
	"context"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/sakha-transit/tripgraph/errors"
	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/types"
)

// Worker is the shape every pipeline stage implements (spec §2 control flow:
// "Workers are serial: each checks a canRun precondition").
type Worker interface {
	ID() string
	CanRun(ctx context.Context) (bool, string, error)
	Run(ctx context.Context) (types.WorkerOutcome, error)
}

// RunGuarded wraps a worker body the way every worker in the pipeline must
// (spec §7 propagation policy): it stamps a correlation id, times the run,
// and converts any uncaught error into the uniform EXECUTION_ERROR outcome.
func RunGuarded(ctx context.Context, workerID string, log *logging.Logger, body func(ctx context.Context, correlationID string) (types.WorkerOutcome, error)) (types.WorkerOutcome, error) {
	correlationID := uuid.NewString()
	log = log.WithWorker(workerID, correlationID)
	start := time.Now()
	log.WorkerStart(workerID)

	outcome, err := safeRun(ctx, workerID, correlationID, body)
	outcome.ExecutionTimeMs = time.Since(start).Milliseconds()
	outcome.WorkerID = workerID
	outcome.CorrelationID = correlationID

	log.WorkerComplete(workerID, time.Since(start), outcome.Success, outcome.Message)
	return outcome, err
}

func safeRun(ctx context.Context, workerID, correlationID string, body func(context.Context, string) (types.WorkerOutcome, error)) (outcome types.WorkerOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			we := errors.NewWorkerError(workerID, types.ErrExecutionError, "panic recovered")
			outcome = types.WorkerOutcome{Success: false, Error: types.ErrExecutionError, Message: we.Error()}
			err = we
		}
	}()

	outcome, err = body(ctx, correlationID)
	if err != nil {
		we := errors.WrapAsExecutionError(workerID, err)
		outcome = types.WorkerOutcome{Success: false, Error: we.Code, Message: we.Error()}
		return outcome, we
	}
	return outcome, nil
}

const earthRadiusKm = 6371.0

// HaversineKm computes the great-circle distance between two coordinates
// (spec §4.E step 3: "Distance is Haversine (R=6371 km)").
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// ShuttleDurationMinutes derives a duration estimate from a Haversine
// distance (spec §4.E step 3: "duration is max(60, round(distanceKm / 60 * 60))").
func ShuttleDurationMinutes(distanceKm float64) int {
	d := int(math.Round(distanceKm / 60 * 60))
	if d < 60 {
		return 60
	}
	return d
}

var (
	exactlyVirtualPlaceholderRe = regexp.MustCompile(`^virtual-stop-+$`)
	tripleDashRe                = regexp.MustCompile(`---+`)
)

// StopFilterResult is the outcome of PassesStopFilter, distinguishing "admit"
// from the specific rule that rejected a candidate stop.
type StopFilterResult struct {
	Admitted bool
	Reason   string
}

// PassesStopFilter implements the admission rule spec §3.2 and §4.F describe
// for a stop entering the graph or being selected as a federal-city
// representative: non-empty name, non-empty cityId present in the reference,
// an id that is not the bare virtual-stop placeholder or riddled with 3+
// consecutive dashes, and — if the stop looks ferry-like by keyword — a
// metadata.type of "ferry_terminal".
func PassesStopFilter(id, name, cityID string, cityInReference bool, looksFerryLike bool, metadataType string) StopFilterResult {
	if name == "" {
		return StopFilterResult{Reason: "empty name"}
	}
	if cityID == "" {
		return StopFilterResult{Reason: "empty cityId"}
	}
	if !cityInReference {
		return StopFilterResult{Reason: "cityId not in unified reference"}
	}
	if exactlyVirtualPlaceholderRe.MatchString(id) {
		return StopFilterResult{Reason: "id matches virtual-stop placeholder pattern"}
	}
	if tripleDashRe.MatchString(id) {
		return StopFilterResult{Reason: "id contains 3 or more consecutive dashes"}
	}
	if looksFerryLike && metadataType != "ferry_terminal" {
		return StopFilterResult{Reason: "ferry-like id/name without ferry_terminal metadata"}
	}
	return StopFilterResult{Admitted: true}
}
