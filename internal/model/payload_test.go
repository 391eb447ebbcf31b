package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCanonicalJSONRoundTrip(t *testing.T) {
	median := 1000.0
	payload := WebhookPayload{
		Version:   SchemaVersion,
		EventID:   "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		EventType: EventAnomaly,
		Timestamp: NewTimestamp(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		Source:    SourceDescriptor{Name: "orders_db", Type: "postgres"},
		Decision: DecisionPayload{
			Status: StatusAnomaly,
			Reasons: []ReasonPayload{
				{Code: ReasonVolumeZero, Message: "row count is zero", Severity: SeverityCritical},
			},
			Confidence: 0.3,
		},
		Metrics: map[string]any{"row_count": 0},
		Baseline: BaselinePayload{
			SnapshotCount:  0,
			RowCountMedian: &median,
		},
		Context: ContextPayload{AgentID: "agent-1"},
	}

	body, err := payload.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if n := len(body); n > 0 && body[n-1] == '\n' {
		t.Fatalf("canonical JSON must not end with a trailing newline")
	}

	var decoded WebhookPayload
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Version != payload.Version || decoded.EventID != payload.EventID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, payload)
	}
	if decoded.Decision.Status != StatusAnomaly || len(decoded.Decision.Reasons) != 1 {
		t.Fatalf("decision round trip mismatch: %+v", decoded.Decision)
	}
	if decoded.Baseline.RowCountMedian == nil || *decoded.Baseline.RowCountMedian != median {
		t.Fatalf("baseline round trip mismatch: %+v", decoded.Baseline)
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	payload := WebhookPayload{
		Version:   SchemaVersion,
		EventID:   "id-1",
		EventType: EventWarning,
		Timestamp: NewTimestamp(time.Now()),
		Source:    SourceDescriptor{Name: "s", Type: "mysql"},
		Decision:  DecisionPayload{Status: StatusWarning},
		Metrics:   map[string]any{"b": 2, "a": 1, "c": 3},
		Baseline:  BaselinePayload{},
		Context:   ContextPayload{AgentID: "agent-1"},
	}
	a, err := payload.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	b, err := payload.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonical JSON is not deterministic:\n%s\nvs\n%s", a, b)
	}
}

func TestReasonHashStableOverSortedMultiset(t *testing.T) {
	a := ReasonHash([]string{ReasonVolumeZero, ReasonDataStale})
	b := ReasonHash([]string{ReasonDataStale, ReasonVolumeZero})
	if a != b {
		t.Fatalf("reason hash must be order independent: %s vs %s", a, b)
	}
	c := ReasonHash([]string{ReasonVolumeZero})
	if a == c {
		t.Fatalf("reason hash collided for different code sets")
	}
}

func TestReasonHashEmptyIsStable(t *testing.T) {
	if ReasonHash(nil) != ReasonHash([]string{}) {
		t.Fatalf("empty reason hash should be stable across nil/empty slices")
	}
	if ReasonHash(nil) != EmptyReasonHash {
		t.Fatalf("EmptyReasonHash constant drifted from ReasonHash(nil)")
	}
}
