// Package types holds small shared value types used across the transportation
// graph pipeline: severities, transport-mode enums, and the worker/query
// outcome envelopes every component returns.
package types

import (
	"encoding/json"
	"fmt"
)

// Severity mirrors the error/warning split every validator in §4.D must keep.
type Severity int

const (
	INFO Severity = iota
	WARNING
	ERROR
)

func (s Severity) String() string {
	switch s {
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Severity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "INFO":
		*s = INFO
	case "WARNING":
		*s = WARNING
	case "ERROR":
		*s = ERROR
	default:
		return fmt.Errorf("invalid severity: %s", str)
	}
	return nil
}

// Finding is a single structural/transfer/ferry validator issue (spec §4.D).
type Finding struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	EdgeFrom string   `json:"edgeFrom,omitempty"`
	EdgeTo   string   `json:"edgeTo,omitempty"`
}

// TransportType is the real-world mode of a Route/Flight (spec §3.1).
type TransportType int

const (
	TransportUnknown TransportType = iota
	TransportBus
	TransportTrain
	TransportPlane
	TransportWater
	TransportFerry
	TransportTaxi
)

func (t TransportType) String() string {
	switch t {
	case TransportBus:
		return "BUS"
	case TransportTrain:
		return "TRAIN"
	case TransportPlane:
		return "PLANE"
	case TransportWater:
		return "WATER"
	case TransportFerry:
		return "FERRY"
	case TransportTaxi:
		return "TAXI"
	default:
		return "UNKNOWN"
	}
}

func (t TransportType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TransportType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseTransportType(s)
	return nil
}

// ParseTransportType normalizes both the Russian and English vocabulary used
// across ingested data (route/flight transport tags) into the canonical
// enum. An unrecognized tag maps to TransportUnknown rather than erroring:
// a stale or foreign tag must never abort a query (spec §4.H).
func ParseTransportType(s string) TransportType {
	switch asciiLower(s) {
	case "самолет", "plane", "airplane":
		return TransportPlane
	case "автобус", "bus":
		return TransportBus
	case "поезд", "train":
		return TransportTrain
	case "паром", "ferry":
		return TransportFerry
	case "такси", "taxi":
		return TransportTaxi
	case "water":
		return TransportWater
	default:
		return TransportUnknown
	}
}

func asciiLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r - 'A' + 'a'
		}
	}
	return string(out)
}

// DatasetSource tags the provenance of an ingested dataset snapshot.
type DatasetSource string

const (
	DatasetSourceOData  DatasetSource = "ODATA"
	DatasetSourceMock   DatasetSource = "MOCK"
	DatasetSourceHybrid DatasetSource = "HYBRID"
)

// GridType classifies a synthesized virtual stop (spec §3.1 VirtualStop).
type GridType string

const (
	GridMainGrid    GridType = "MAIN_GRID"
	GridDenseCity   GridType = "DENSE_CITY"
	GridAirportGrid GridType = "AIRPORT_GRID"
)

// VirtualRouteType classifies the endpoints of a synthesized connectivity leg.
type VirtualRouteType string

const (
	RouteRealToVirtual    VirtualRouteType = "REAL_TO_VIRTUAL"
	RouteVirtualToReal    VirtualRouteType = "VIRTUAL_TO_REAL"
	RouteVirtualToVirtual VirtualRouteType = "VIRTUAL_TO_VIRTUAL"
)

// VirtualTransportMode is the synthesized-route analogue of TransportType
// (spec §3.1 VirtualRoute.transportMode).
type VirtualTransportMode string

const (
	ModeWalk     VirtualTransportMode = "WALK"
	ModeTransfer VirtualTransportMode = "TRANSFER"
	ModeShuttle  VirtualTransportMode = "SHUTTLE"
)

// EdgeKind distinguishes graph edges produced from scheduled service versus
// the synthesized intra-city/ferry edges added by the graph builder (§4.G).
type EdgeKind string

const (
	EdgeTransportLink EdgeKind = "TRANSPORT_LINK"
	EdgeTransfer      EdgeKind = "TRANSFER"
	EdgeFerry         EdgeKind = "FERRY"
)

// StopClass is the output of the §4.D/§4.G stop-type classifier.
type StopClass string

const (
	StopClassAirport       StopClass = "airport"
	StopClassFerryTerminal StopClass = "ferry_terminal"
	StopClassGround        StopClass = "ground"
)

// WorkerErrorCode enumerates the machine-readable failure codes a worker
// outcome may carry (spec §6/§7).
type WorkerErrorCode string

const (
	ErrCannotRun         WorkerErrorCode = "CANNOT_RUN"
	ErrNoDataset         WorkerErrorCode = "NO_DATASET"
	ErrNoHubStops        WorkerErrorCode = "NO_HUB_STOPS"
	ErrInsufficientStops WorkerErrorCode = "INSUFFICIENT_STOPS"
	ErrExecutionError    WorkerErrorCode = "EXECUTION_ERROR"
)

// DataProcessed reports the row-level effect of a worker run.
type DataProcessed struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// WorkerOutcome is the uniform envelope every pipeline worker returns (spec §6).
type WorkerOutcome struct {
	Success         bool            `json:"success"`
	WorkerID        string          `json:"workerId"`
	CorrelationID   string          `json:"correlationId"`
	ExecutionTimeMs int64           `json:"executionTimeMs"`
	Message         string          `json:"message"`
	Error           WorkerErrorCode `json:"error,omitempty"`
	NextWorker      string          `json:"nextWorker,omitempty"`
	DataProcessed   *DataProcessed  `json:"dataProcessed,omitempty"`
}

func (o WorkerOutcome) String() string {
	if o.Success {
		return fmt.Sprintf("%s: %s (%dms)", o.WorkerID, o.Message, o.ExecutionTimeMs)
	}
	return fmt.Sprintf("%s: FAILED [%s] %s (%dms)", o.WorkerID, o.Error, o.Message, o.ExecutionTimeMs)
}

// QueryErrorCode enumerates the machine-readable failure codes of the query
// engine response (spec §7).
type QueryErrorCode string

const (
	QErrValidation       QueryErrorCode = "VALIDATION_ERROR"
	QErrGraphUnavailable QueryErrorCode = "GRAPH_UNAVAILABLE"
	QErrNoStopsFound     QueryErrorCode = "NO_STOPS_FOUND"
	QErrGraphOutOfSync   QueryErrorCode = "GRAPH_OUT_OF_SYNC"
	QErrNoRoute          QueryErrorCode = "NO_ROUTE"
	QErrDeadlineExceeded QueryErrorCode = "DEADLINE_EXCEEDED"
	QErrInternal         QueryErrorCode = "INTERNAL_ERROR"
)
