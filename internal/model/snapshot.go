// Package model defines the data types shared by every component of the
// monitoring core: Snapshot, BaselineSummary, Reason, Decision, AlertState,
// DeliveryRecord and WebhookPayload. Nothing in this package performs I/O.
package model

import (
	"strconv"
	"time"
)

// CollectStatus is the outcome of a single Collector probe.
type CollectStatus string

const (
	CollectSuccess CollectStatus = "SUCCESS"
	CollectFailed  CollectStatus = "COLLECT_FAILED"
)

// Snapshot is one probe result for one source at one instant.
//
// Invariant: CollectStatus == CollectFailed implies RowCount and
// LatestTimestamp are both nil.
type Snapshot struct {
	Source          string
	CollectedAt     time.Time
	Status          CollectStatus
	RowCount        *int64
	LatestTimestamp *time.Time
	Metrics         map[string]float64
	Metadata        map[string]string
}

// Valid reports whether the snapshot respects the COLLECT_FAILED invariant
// and, for SUCCESS snapshots, carries no negative row count (a nil row
// count is accepted).
func (s Snapshot) Valid() bool {
	if s.Status == CollectFailed {
		return s.RowCount == nil && s.LatestTimestamp == nil
	}
	if s.Status == CollectSuccess {
		return s.RowCount == nil || *s.RowCount >= 0
	}
	return false
}

// NewFailedSnapshot builds a COLLECT_FAILED snapshot carrying the boundary
// error details a Collector adapter recovered locally (§6/§9: collection
// errors never cross the core as exceptions).
func NewFailedSnapshot(source string, collectedAt time.Time, errCode, errMsg string, durationMS int64) Snapshot {
	return Snapshot{
		Source:      source,
		CollectedAt: collectedAt.UTC(),
		Status:      CollectFailed,
		Metadata: map[string]string{
			"error_code":    errCode,
			"error_message": errMsg,
			"duration_ms":   strconv.FormatInt(durationMS, 10),
		},
	}
}
