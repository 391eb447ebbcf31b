package model

import "time"

// EventType is the kind of webhook event a dispatched payload carries.
type EventType string

const (
	EventAnomaly  EventType = "anomaly"
	EventWarning  EventType = "warning"
	EventRecovery EventType = "recovery"
	// EventInfo is reserved for callers constructing synthetic/test
	// payloads; the Alert Pipeline's state machine never emits it.
	EventInfo EventType = "info"
)

// DeliveryRecord is an append-only log entry for one delivery attempt
// outcome (spec.md §3).
type DeliveryRecord struct {
	Source      string
	Target      string
	EventType   EventType
	PayloadHash string
	DeliveredAt time.Time
	Success     bool
	HTTPStatus  int
	LatencyMS   int64
	ErrorMessage string
}

// DeliveryResult is what the Delivery Client returns for one send attempt
// sequence (spec.md §4.5).
type DeliveryResult struct {
	Success      bool
	HTTPStatus   int
	LatencyMS    int64
	ErrorMessage string
	Attempts     int
}
