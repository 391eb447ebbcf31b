package decision

import (
	"testing"
	"time"

	"github.com/predixa/dataguard/internal/baseline"
	"github.com/predixa/dataguard/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestScenario1ColdStartZeroRows(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	snap := model.Snapshot{
		Status:          model.CollectSuccess,
		RowCount:        ptr(int64(0)),
		LatestTimestamp: &now,
	}
	bl := baseline.Compute(now, nil, baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 30})
	policy := SourcePolicy{Volume: VolumePolicy{MinRowCount: ptr(int64(100))}}

	d := Evaluate(now, snap, bl, policy)
	if d.Status != model.StatusAnomaly {
		t.Fatalf("expected ANOMALY, got %s", d.Status)
	}
	codes := d.ReasonCodes()
	if len(codes) != 2 || codes[0] != model.ReasonVolumeZero || codes[1] != model.ReasonVolumeBelowMinimum {
		t.Fatalf("expected [VOLUME_ZERO, VOLUME_BELOW_MINIMUM], got %v", codes)
	}
	if d.Confidence != 0.3 {
		t.Fatalf("expected confidence 0.3, got %v", d.Confidence)
	}
}

func healthyHistory(now time.Time) []model.Snapshot {
	counts := []int64{980, 1020, 1000, 990, 1010, 1000, 1000, 1020, 980, 1000,
		1010, 990, 1000, 1020, 980, 1000, 1010, 1000, 990, 1000}
	history := make([]model.Snapshot, len(counts))
	for i, c := range counts {
		ts := now.Add(-time.Duration(len(counts)-i) * 6 * time.Hour)
		rc := c
		history[i] = model.Snapshot{Status: model.CollectSuccess, CollectedAt: ts, RowCount: &rc}
	}
	return history
}

func TestScenario2HealthyWithBaseline(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	bl := baseline.Compute(now, healthyHistory(now), baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 365})
	latest := now.Add(-1 * time.Hour)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1003)), LatestTimestamp: &latest}
	policy := SourcePolicy{
		Volume:    VolumePolicy{DeviationFactor: 3.0},
		Freshness: FreshnessPolicy{Factor: 2.0},
	}
	d := Evaluate(now, snap, bl, policy)
	if d.Status != model.StatusOK {
		t.Fatalf("expected OK, got %s reasons=%v", d.Status, d.ReasonCodes())
	}
	if len(d.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", d.Reasons)
	}
	if d.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", d.Confidence)
	}
}

func TestScenario3VolumeDeviationWarning(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	bl := baseline.Compute(now, healthyHistory(now), baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 365})
	latest := now.Add(-1 * time.Hour)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1500)), LatestTimestamp: &latest}
	policy := SourcePolicy{Volume: VolumePolicy{DeviationFactor: 3.0}, Freshness: FreshnessPolicy{Factor: 2.0}}
	d := Evaluate(now, snap, bl, policy)
	if d.Status != model.StatusWarning {
		t.Fatalf("expected WARNING, got %s", d.Status)
	}
	codes := d.ReasonCodes()
	if len(codes) != 1 || codes[0] != model.ReasonVolumeDeviation {
		t.Fatalf("expected [VOLUME_DEVIATION], got %v", codes)
	}
}

func TestScenario4HardFreshnessAnomaly(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	bl := baseline.Compute(now, healthyHistory(now), baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 365})
	latest := now.Add(-10 * time.Hour)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1000)), LatestTimestamp: &latest}
	policy := SourcePolicy{Freshness: FreshnessPolicy{MaxAgeHours: ptr(8.0), Factor: 2.0}}
	d := Evaluate(now, snap, bl, policy)
	if d.Status != model.StatusAnomaly {
		t.Fatalf("expected ANOMALY, got %s", d.Status)
	}
	if len(d.Reasons) != 1 || d.Reasons[0].Code != model.ReasonDataStale || d.Reasons[0].Severity != model.SeverityCritical {
		t.Fatalf("expected a single critical DATA_STALE reason, got %+v", d.Reasons)
	}
}

func TestR4SuppressesR6WhenBothWouldFire(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	bl := baseline.Compute(now, healthyHistory(now), baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 365})
	latest := now.Add(-20 * time.Hour)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1000)), LatestTimestamp: &latest}
	policy := SourcePolicy{Freshness: FreshnessPolicy{MaxAgeHours: ptr(8.0), Factor: 2.0}}
	d := Evaluate(now, snap, bl, policy)
	staleCount := 0
	for _, r := range d.Reasons {
		if r.Code == model.ReasonDataStale {
			staleCount++
		}
	}
	if staleCount != 1 {
		t.Fatalf("expected exactly one DATA_STALE reason when R4 and R6 both would fire, got %d", staleCount)
	}
}

func TestCollectFailedShortCircuits(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	snap := model.Snapshot{Status: model.CollectFailed}
	policy := SourcePolicy{Volume: VolumePolicy{MinRowCount: ptr(int64(10))}}
	d := Evaluate(now, snap, model.BaselineSummary{}, policy)
	if d.Status != model.StatusAnomaly {
		t.Fatalf("expected ANOMALY, got %s", d.Status)
	}
	if len(d.Reasons) != 1 || d.Reasons[0].Code != model.ReasonCollectFailed {
		t.Fatalf("expected exactly [COLLECT_FAILED], got %v", d.ReasonCodes())
	}
}

func TestZeroStdDevNeverFiresR5(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	stddev := 0.0
	median := 1000.0
	bl := model.BaselineSummary{SnapshotCount: 10, RowCountMedian: &median, RowCountStdDev: &stddev}
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(5000))}
	d := Evaluate(now, snap, bl, SourcePolicy{})
	for _, r := range d.Reasons {
		if r.Code == model.ReasonVolumeDeviation {
			t.Fatalf("R5 must not fire when baseline stddev is 0")
		}
	}
}

func TestNilLatestTimestampSuppressesFreshnessRules(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	interval := 3600.0
	bl := model.BaselineSummary{SnapshotCount: 10, ExpectedIntervalSeconds: &interval}
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1000))}
	policy := SourcePolicy{Freshness: FreshnessPolicy{MaxAgeHours: ptr(1.0)}}
	d := Evaluate(now, snap, bl, policy)
	if d.Status != model.StatusOK {
		t.Fatalf("expected OK when latest timestamp is nil, got %s reasons=%v", d.Status, d.ReasonCodes())
	}
}

func TestUnsetMinRowCountStillLetsR2Fire(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(0))}
	d := Evaluate(now, snap, model.BaselineSummary{}, SourcePolicy{})
	if d.Status != model.StatusAnomaly {
		t.Fatalf("expected ANOMALY for zero rows even without min_row_count, got %s", d.Status)
	}
	if len(d.Reasons) != 1 || d.Reasons[0].Code != model.ReasonVolumeZero {
		t.Fatalf("expected only VOLUME_ZERO, got %v", d.ReasonCodes())
	}
}

func TestDeviationExactlyAtThresholdIsNotAnomalous(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	median := 1000.0
	stddev := 10.0
	bl := model.BaselineSummary{SnapshotCount: 10, RowCountMedian: &median, RowCountStdDev: &stddev}
	// deviation == exactly 3*stddev: the rule requires strict '>' so this must not fire.
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1030))}
	d := Evaluate(now, snap, bl, SourcePolicy{Volume: VolumePolicy{DeviationFactor: 3.0}})
	if d.Status != model.StatusOK {
		t.Fatalf("expected OK at exact threshold, got %s reasons=%v", d.Status, d.ReasonCodes())
	}
}

func TestDeterministicOutputForIdenticalInputs(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	bl := baseline.Compute(now, healthyHistory(now), baseline.WindowPolicy{WindowSize: 50, MaxAgeDays: 365})
	latest := now.Add(-1 * time.Hour)
	snap := model.Snapshot{Status: model.CollectSuccess, RowCount: ptr(int64(1500)), LatestTimestamp: &latest}
	policy := SourcePolicy{Volume: VolumePolicy{DeviationFactor: 3.0}, Freshness: FreshnessPolicy{Factor: 2.0}}
	a := Evaluate(now, snap, bl, policy)
	b := Evaluate(now, snap, bl, policy)
	if a.Status != b.Status || len(a.Reasons) != len(b.Reasons) || a.Confidence != b.Confidence {
		t.Fatalf("expected bit-identical decisions for identical inputs: %+v vs %+v", a, b)
	}
}
