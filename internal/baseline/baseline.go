// Package baseline computes a BaselineSummary from a source's historical
// snapshots. Grounded on the teacher's statistics helpers
// (services/scheduler-service/internal/scheduler/{stats,detectors}.go):
// same Median/MAD-style approach, generalized from MAD to population
// stddev per spec.md §4.1.
package baseline

import (
	"math"
	"sort"
	"time"

	"github.com/predixa/dataguard/internal/model"
)

// WindowPolicy bounds which snapshots contribute to the baseline.
type WindowPolicy struct {
	WindowSize int
	MaxAgeDays int
}

// Compute is a pure, deterministic function from a chronologically
// unordered collection of Snapshots for one source and a WindowPolicy to a
// BaselineSummary (spec.md §4.1).
func Compute(now time.Time, snapshots []model.Snapshot, policy WindowPolicy) model.BaselineSummary {
	cutoff := now.AddDate(0, 0, -policy.MaxAgeDays)
	filtered := make([]model.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Status != model.CollectSuccess || s.RowCount == nil {
			continue
		}
		if policy.MaxAgeDays > 0 && s.CollectedAt.Before(cutoff) {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CollectedAt.Before(filtered[j].CollectedAt)
	})

	windowSize := policy.WindowSize
	if windowSize > 0 && len(filtered) > windowSize {
		filtered = filtered[len(filtered)-windowSize:]
	}

	if len(filtered) == 0 {
		return model.BaselineSummary{SnapshotCount: 0}
	}

	counts := make([]float64, len(filtered))
	for i, s := range filtered {
		counts[i] = float64(*s.RowCount)
	}

	median := Median(counts)
	minV, maxV := minMax(counts)
	summary := model.BaselineSummary{
		SnapshotCount:  len(filtered),
		RowCountMedian: &median,
		RowCountMin:    &minV,
		RowCountMax:    &maxV,
	}
	if len(counts) >= 2 {
		stddev := StdDevPopulation(counts)
		summary.RowCountStdDev = &stddev
	}

	if interval := expectedIntervalSeconds(filtered); interval != nil {
		summary.ExpectedIntervalSeconds = interval
	}

	oldest := filtered[0].CollectedAt
	newest := filtered[len(filtered)-1].CollectedAt
	summary.OldestSnapshotAt = &oldest
	summary.NewestSnapshotAt = &newest

	return summary
}

// Median is the linear-interpolation median with lower-midpoint averaging
// on ties, matching the teacher's Median helper.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDevPopulation is the population standard deviation (denominator N,
// not N-1), as spec.md §4.1 step 4 requires.
func StdDevPopulation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}

// expectedIntervalSeconds is the median of positive consecutive deltas
// between CollectedAt values; nil when fewer than 2 samples, or when no
// delta is strictly positive (non-monotonic input produces no signal).
func expectedIntervalSeconds(sorted []model.Snapshot) *float64 {
	if len(sorted) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].CollectedAt.Sub(sorted[i-1].CollectedAt).Seconds()
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return nil
	}
	m := Median(deltas)
	return &m
}
