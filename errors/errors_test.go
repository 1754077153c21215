package errors

import (
	"errors"
	"testing"

	"github.com/sakha-transit/tripgraph/types"
)

func TestWrapAsExecutionError(t *testing.T) {
	cause := errors.New("connection refused")
	we := WrapAsExecutionError("graph-builder", cause)
	if we.Code != types.ErrExecutionError {
		t.Fatalf("expected EXECUTION_ERROR, got %s", we.Code)
	}
	if we.Worker != "graph-builder" {
		t.Fatalf("unexpected worker: %s", we.Worker)
	}
	if we.Message != cause.Error() {
		t.Fatalf("expected message to embed cause, got %q", we.Message)
	}

	already := NewWorkerError("air-route", types.ErrNoHubStops, "no hub")
	if WrapAsExecutionError("air-route", already) != already {
		t.Fatalf("wrapping an existing WorkerError should be a no-op")
	}

	if WrapAsExecutionError("x", nil) != nil {
		t.Fatalf("wrapping nil should return nil")
	}
}

func TestQueryErrorMissingNodes(t *testing.T) {
	qe := NewQueryError(types.QErrGraphOutOfSync, "stale graph").WithMissingNodes("stop-1", "stop-2")
	if len(qe.MissingNodes) != 2 {
		t.Fatalf("expected 2 missing nodes, got %d", len(qe.MissingNodes))
	}
	if qe.Error() == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestActiveRowExistsError(t *testing.T) {
	err := &ActiveRowExistsError{Entity: "dataset", ID: "v1"}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}
