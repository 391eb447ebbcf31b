// Package decision implements the Decision Engine: a pure, deterministic
// function from (current snapshot, baseline, source policy) to a Decision.
// Rule shapes and the DetectorResult-style "observed vs limit" bookkeeping
// are grounded on the teacher's detector catalog
// (services/scheduler-service/internal/scheduler/{detectors,phase1_rules}.go),
// but the fixed rule order, short-circuiting and status mapping follow
// spec.md §4.2 exactly.
package decision

import (
	"math"
	"time"

	"github.com/predixa/dataguard/internal/model"
)

// Evaluate runs rules R1-R6 in their fixed order and returns a Decision.
// It never panics or returns an error: malformed input degenerates to OK
// with an empty reason list (spec.md §4.2 "Failure semantics").
func Evaluate(now time.Time, snapshot model.Snapshot, bl model.BaselineSummary, policy SourcePolicy) model.Decision {
	metrics := map[string]float64{}
	if snapshot.RowCount != nil {
		metrics["row_count"] = float64(*snapshot.RowCount)
	}

	reasons := []model.Reason{}

	// R1 — collection failure. Short-circuits every other rule.
	if snapshot.Status == model.CollectFailed {
		reasons = append(reasons, model.Reason{
			Code:     model.ReasonCollectFailed,
			Message:  "the collector failed to retrieve a snapshot for this source",
			Severity: model.SeverityCritical,
			Details:  map[string]any{"metadata": snapshot.Metadata},
		})
		return finalize(reasons, metrics, bl)
	}

	if snapshot.RowCount != nil {
		rowCount := *snapshot.RowCount

		// R2 — zero rows.
		if rowCount == 0 {
			reasons = append(reasons, model.Reason{
				Code:     model.ReasonVolumeZero,
				Message:  "row count is zero",
				Severity: model.SeverityCritical,
			})
		}

		// R3 — minimum volume.
		if policy.Volume.MinRowCount != nil && rowCount < *policy.Volume.MinRowCount {
			reasons = append(reasons, model.Reason{
				Code:     model.ReasonVolumeBelowMinimum,
				Message:  "row count is below the configured minimum",
				Severity: model.SeverityCritical,
				Details: map[string]any{
					"row_count":      rowCount,
					"min_row_count": *policy.Volume.MinRowCount,
				},
			})
		}
	}

	// R4 — hard freshness.
	staleHard := false
	if policy.Freshness.MaxAgeHours != nil && snapshot.LatestTimestamp != nil {
		ageHours := now.Sub(*snapshot.LatestTimestamp).Hours()
		if ageHours > *policy.Freshness.MaxAgeHours {
			staleHard = true
			reasons = append(reasons, model.Reason{
				Code:     model.ReasonDataStale,
				Message:  "latest data is older than the configured maximum age",
				Severity: model.SeverityCritical,
				Details: map[string]any{
					"age_hours":     ageHours,
					"max_age_hours": *policy.Freshness.MaxAgeHours,
				},
			})
		}
	}

	// R5 — volume deviation from baseline.
	if snapshot.RowCount != nil && bl.HasVolumeStats() {
		rowCount := float64(*snapshot.RowCount)
		deviation := math.Abs(rowCount - *bl.RowCountMedian)
		threshold := policy.Volume.deviationFactor() * *bl.RowCountStdDev
		if deviation > threshold {
			reasons = append(reasons, model.Reason{
				Code:     model.ReasonVolumeDeviation,
				Message:  "row count deviates from the learned baseline",
				Severity: model.SeverityWarning,
				Details: map[string]any{
					"row_count":        rowCount,
					"baseline_median":  *bl.RowCountMedian,
					"baseline_stddev":  *bl.RowCountStdDev,
					"deviation_factor": policy.Volume.deviationFactor(),
				},
			})
		}
	}

	// R6 — interval freshness, suppressed when R4 already fired.
	if !staleHard && bl.HasIntervalStats() && snapshot.LatestTimestamp != nil {
		ageSeconds := now.Sub(*snapshot.LatestTimestamp).Seconds()
		threshold := policy.Freshness.factor() * *bl.ExpectedIntervalSeconds
		if ageSeconds > threshold {
			reasons = append(reasons, model.Reason{
				Code:     model.ReasonDataStale,
				Message:  "latest data is older than expected given the historical arrival interval",
				Severity: model.SeverityWarning,
				Details: map[string]any{
					"age_seconds":               ageSeconds,
					"expected_interval_seconds": *bl.ExpectedIntervalSeconds,
					"factor":                    policy.Freshness.factor(),
				},
			})
		}
	}

	return finalize(reasons, metrics, bl)
}

func finalize(reasons []model.Reason, metrics map[string]float64, bl model.BaselineSummary) model.Decision {
	status := model.StatusOK
	hasCritical, hasWarning := false, false
	for _, r := range reasons {
		if r.Severity == model.SeverityCritical {
			hasCritical = true
		} else if r.Severity == model.SeverityWarning {
			hasWarning = true
		}
	}
	switch {
	case hasCritical:
		status = model.StatusAnomaly
	case hasWarning:
		status = model.StatusWarning
	}

	blCopy := bl
	return model.Decision{
		Status:     status,
		Reasons:    reasons,
		Metrics:    metrics,
		Baseline:   &blCopy,
		Confidence: confidence(bl.SnapshotCount),
	}
}

// confidence is the step function over baseline.snapshot_count described
// in spec.md §4.2. It is informational only and never gates a rule.
func confidence(snapshotCount int) float64 {
	switch {
	case snapshotCount >= 10:
		return 1.0
	case snapshotCount >= 5:
		return 0.8
	case snapshotCount >= 3:
		return 0.5
	default:
		return 0.3
	}
}
