package types

import "testing"

func TestParseTransportType(t *testing.T) {
	cases := map[string]TransportType{
		"самолет":   TransportPlane,
		"Plane":     TransportPlane,
		"airplane":  TransportPlane,
		"автобус":   TransportBus,
		"BUS":       TransportBus,
		"поезд":     TransportTrain,
		"train":     TransportTrain,
		"паром":     TransportFerry,
		"Ferry":     TransportFerry,
		"такси":     TransportTaxi,
		"taxi":      TransportTaxi,
		"something": TransportUnknown,
		"":          TransportUnknown,
	}
	for in, want := range cases {
		if got := ParseTransportType(in); got != want {
			t.Errorf("ParseTransportType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSeverityJSONRoundTrip(t *testing.T) {
	for _, s := range []Severity{INFO, WARNING, ERROR} {
		b, err := s.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got Severity
		if err := got.UnmarshalJSON(b); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != s {
			t.Errorf("round trip %v != %v", got, s)
		}
	}
}

func TestWorkerOutcomeString(t *testing.T) {
	ok := WorkerOutcome{Success: true, WorkerID: "w1", Message: "done", ExecutionTimeMs: 12}
	if got := ok.String(); got != "w1: done (12ms)" {
		t.Errorf("unexpected success string: %q", got)
	}
	bad := WorkerOutcome{Success: false, WorkerID: "w1", Error: ErrNoDataset, Message: "no dataset", ExecutionTimeMs: 3}
	if got := bad.String(); got != "w1: FAILED [NO_DATASET] no dataset (3ms)" {
		t.Errorf("unexpected failure string: %q", got)
	}
}
