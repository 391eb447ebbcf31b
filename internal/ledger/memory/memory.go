// Package memory is an in-process State Ledger implementation: the
// reference store used by tests, dry-run checks and the CLI's demo mode,
// where a durable backend would be overkill (spec.md §4.6). Its state is a
// set of maps guarded by one RWMutex: writers are serialized, readers may
// run concurrently.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/predixa/dataguard/internal/ledger"
	"github.com/predixa/dataguard/internal/model"
)

type snapshotRow struct {
	id       int64
	snapshot model.Snapshot
}

// Ledger is a goroutine-safe, in-memory Ledger. The zero value is not
// usable; construct with New.
type Ledger struct {
	mu sync.RWMutex

	nextID    int64
	snapshots map[string][]snapshotRow
	states    map[string]model.AlertState
	deliveries []model.DeliveryRecord
}

// New builds an empty in-memory Ledger.
func New() *Ledger {
	return &Ledger{
		snapshots: map[string][]snapshotRow{},
		states:    map[string]model.AlertState{},
	}
}

var _ ledger.Ledger = (*Ledger)(nil)

func stateKey(source, target string) string { return source + "\x00" + target }

// AppendSnapshot durably appends s under source, assigning a monotonically
// increasing id.
func (l *Ledger) AppendSnapshot(ctx context.Context, source string, s model.Snapshot) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.snapshots[source] = append(l.snapshots[source], snapshotRow{id: id, snapshot: s})
	return id, nil
}

// GetLastSnapshot returns the most recent snapshot by CollectedAt, or nil
// if source has never been probed.
func (l *Ledger) GetLastSnapshot(ctx context.Context, source string) (*model.Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := l.snapshots[source]
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.snapshot.CollectedAt.After(latest.snapshot.CollectedAt) {
			latest = r
		}
	}
	s := latest.snapshot
	return &s, nil
}

// ListSnapshots returns source's snapshots newest-first, with filter
// applied before Limit truncates the result (spec.md §4.6).
func (l *Ledger) ListSnapshots(ctx context.Context, source string, filter ledger.ListFilter) ([]model.Snapshot, error) {
	l.mu.RLock()
	rows := make([]snapshotRow, len(l.snapshots[source]))
	copy(rows, l.snapshots[source])
	l.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].snapshot.CollectedAt.After(rows[j].snapshot.CollectedAt)
	})

	out := make([]model.Snapshot, 0, len(rows))
	var cutoff time.Time
	if filter.MaxAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -filter.MaxAgeDays)
	}
	for _, r := range rows {
		if filter.SuccessOnly && r.snapshot.Status != model.CollectSuccess {
			continue
		}
		if filter.MaxAgeDays > 0 && r.snapshot.CollectedAt.Before(cutoff) {
			continue
		}
		out = append(out, r.snapshot)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// GetAlertState returns the last-notified state for (source, target), or
// nil if the pair has never been notified.
func (l *Ledger) GetAlertState(ctx context.Context, source, target string) (*model.AlertState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.states[stateKey(source, target)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SetAlertState atomically upserts state keyed by (Source, Target).
func (l *Ledger) SetAlertState(ctx context.Context, state model.AlertState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.states[stateKey(state.Source, state.Target)] = state
	return nil
}

// LogDelivery appends record to the delivery log.
func (l *Ledger) LogDelivery(ctx context.Context, record model.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.deliveries = append(l.deliveries, record)
	return nil
}

// PurgeOldSnapshots deletes snapshots older than opts.MaxAgeDays while
// retaining at least opts.MinPerSource most recent successful snapshots
// per source (spec.md §4.6).
func (l *Ledger) PurgeOldSnapshots(ctx context.Context, opts ledger.PurgeOptions) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cutoff time.Time
	if opts.MaxAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -opts.MaxAgeDays)
	}

	var deleted int64
	for source, rows := range l.snapshots {
		sorted := make([]snapshotRow, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].snapshot.CollectedAt.After(sorted[j].snapshot.CollectedAt)
		})

		kept := make([]snapshotRow, 0, len(sorted))
		successesKept := 0
		for _, r := range sorted {
			isSuccess := r.snapshot.Status == model.CollectSuccess
			if isSuccess && successesKept < opts.MinPerSource {
				kept = append(kept, r)
				successesKept++
				continue
			}
			if opts.MaxAgeDays > 0 && r.snapshot.CollectedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, r)
		}
		l.snapshots[source] = kept
	}
	return deleted, nil
}

// Close is a no-op; the in-memory ledger owns no external resources.
func (l *Ledger) Close() {}

// Deliveries returns a snapshot of every logged delivery record, for tests
// asserting on what the pipeline recorded.
func (l *Ledger) Deliveries() []model.DeliveryRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.DeliveryRecord, len(l.deliveries))
	copy(out, l.deliveries)
	return out
}
