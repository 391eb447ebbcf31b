package model

import "time"

// BaselineSummary is the rolling statistical summary of recent successful
// snapshots for one source. It is derived and never stored (spec.md §3).
type BaselineSummary struct {
	SnapshotCount            int
	RowCountMedian           *float64
	RowCountMin              *float64
	RowCountMax              *float64
	RowCountStdDev           *float64
	ExpectedIntervalSeconds  *float64
	OldestSnapshotAt         *time.Time
	NewestSnapshotAt         *time.Time
}

// HasVolumeStats reports whether the baseline carries enough samples to
// drive the R5 volume-deviation rule (median and a positive stddev).
func (b BaselineSummary) HasVolumeStats() bool {
	return b.RowCountMedian != nil && b.RowCountStdDev != nil && *b.RowCountStdDev > 0
}

// HasIntervalStats reports whether the baseline carries an expected
// inter-snapshot interval, required by the R6 interval-freshness rule.
func (b BaselineSummary) HasIntervalStats() bool {
	return b.ExpectedIntervalSeconds != nil
}
