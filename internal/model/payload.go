package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// SchemaVersion is the wire-stable version string for WebhookPayload
// (spec.md §6).
const SchemaVersion = "1"

// SourceDescriptor identifies the probed source in a payload.
type SourceDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ReasonPayload is the wire shape of a Reason.
type ReasonPayload struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Severity Severity       `json:"severity"`
	Details  map[string]any `json:"details,omitempty"`
}

// DecisionPayload is the wire shape of a Decision, restricted to the
// fields the external contract publishes (no UNKNOWN status ever appears
// here, spec.md §6).
type DecisionPayload struct {
	Status     Status          `json:"status"`
	Reasons    []ReasonPayload `json:"reasons"`
	Confidence float64         `json:"confidence"`
}

// BaselinePayload is the wire shape of a BaselineSummary.
type BaselinePayload struct {
	SnapshotCount           int      `json:"snapshot_count"`
	RowCountMedian          *float64 `json:"row_count_median"`
	RowCountMin             *float64 `json:"row_count_min"`
	RowCountMax             *float64 `json:"row_count_max"`
	RowCountStdDev          *float64 `json:"row_count_stddev"`
	ExpectedIntervalSeconds *float64 `json:"expected_interval_seconds"`
}

// ContextPayload carries agent identity.
type ContextPayload struct {
	AgentID string `json:"agent_id"`
}

// WebhookPayload is the bit-exact wire format described in spec.md §6.
// Field order matches declaration order: encoding/json marshals struct
// fields in that order, which is how "insertion order" is reproduced for
// the fixed fields. The Metrics map is marshaled with alphabetically
// sorted keys (encoding/json's stdlib behavior) — deterministic, and that
// determinism is what the payload hash actually needs.
type WebhookPayload struct {
	Version   string            `json:"version"`
	EventID   string            `json:"event_id"`
	EventType EventType         `json:"event_type"`
	Timestamp string            `json:"timestamp"`
	Source    SourceDescriptor  `json:"source"`
	Decision  DecisionPayload   `json:"decision"`
	Metrics   map[string]any    `json:"metrics"`
	Baseline  BaselinePayload   `json:"baseline"`
	Context   ContextPayload    `json:"context"`
}

// NewTimestamp renders an instant as RFC3339 UTC with a Z suffix, the
// format spec.md §6 requires everywhere a timestamp appears on the wire.
func NewTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// CanonicalJSON serializes the payload deterministically: UTF-8, no HTML
// escaping, no trailing newline. This is the exact byte sequence that gets
// signed and hashed.
func (p WebhookPayload) CanonicalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	// json.Encoder.Encode always appends a trailing newline; the wire
	// contract forbids one.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// PayloadHash returns the sha256 hex digest of the canonical JSON body,
// stored as DeliveryRecord.PayloadHash (spec.md §3).
func PayloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
