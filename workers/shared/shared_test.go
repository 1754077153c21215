package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/sakha-transit/tripgraph/logging"
	"github.com/sakha-transit/tripgraph/types"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Yakutsk to Moscow, roughly 4900km great-circle.
	d := HaversineKm(62.0355, 129.6755, 55.7558, 37.6173)
	if d < 4500 || d > 5300 {
		t.Errorf("unexpected Yakutsk-Moscow distance: %.1f km", d)
	}
}

func TestShuttleDurationMinutesFloor(t *testing.T) {
	if got := ShuttleDurationMinutes(10); got != 60 {
		t.Errorf("expected floor of 60 minutes, got %d", got)
	}
	if got := ShuttleDurationMinutes(120); got != 120 {
		t.Errorf("expected 120 minutes, got %d", got)
	}
}

func TestPassesStopFilterRejectsPlaceholderID(t *testing.T) {
	r := PassesStopFilter("virtual-stop-", "г. Якутск", "якутск", true, false, "")
	if r.Admitted {
		t.Error("expected placeholder id to be rejected")
	}
}

func TestPassesStopFilterRejectsTripleDash(t *testing.T) {
	r := PassesStopFilter("stop---weird", "Name", "якутск", true, false, "")
	if r.Admitted {
		t.Error("expected triple-dash id to be rejected")
	}
}

func TestPassesStopFilterRejectsFerryLikeWithoutMetadata(t *testing.T) {
	r := PassesStopFilter("stop-1", "Паромная переправа", "якутск", true, true, "")
	if r.Admitted {
		t.Error("expected ferry-like name without ferry_terminal metadata to be rejected")
	}
}

func TestPassesStopFilterAdmitsValidStop(t *testing.T) {
	r := PassesStopFilter("stop-1", "г. Якутск", "якутск", true, false, "")
	if !r.Admitted {
		t.Errorf("expected valid stop to be admitted, got reason %q", r.Reason)
	}
}

func TestRunGuardedConvertsErrorToExecutionError(t *testing.T) {
	log := logging.NewDefault()
	outcome, err := RunGuarded(context.Background(), "test-worker", log, func(ctx context.Context, correlationID string) (types.WorkerOutcome, error) {
		return types.WorkerOutcome{}, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if outcome.Success {
		t.Fatal("expected outcome.Success=false")
	}
	if outcome.Error != types.ErrExecutionError {
		t.Fatalf("expected EXECUTION_ERROR, got %s", outcome.Error)
	}
	if outcome.WorkerID != "test-worker" {
		t.Fatalf("expected worker id to be stamped, got %s", outcome.WorkerID)
	}
}

func TestRunGuardedRecoversPanic(t *testing.T) {
	log := logging.NewDefault()
	outcome, err := RunGuarded(context.Background(), "test-worker", log, func(ctx context.Context, correlationID string) (types.WorkerOutcome, error) {
		panic("unexpected")
	})
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if outcome.Success {
		t.Fatal("expected outcome.Success=false after panic recovery")
	}
}
