package model

// Target is a named webhook destination subscribed to a subset of event
// types (spec.md §4.4/§4.5 "Target").
type Target struct {
	Name            string
	URL             string
	Secret          string
	Events          []EventType
	CooldownMinutes int
	TimeoutSeconds  int
}
