// Package ledger defines the State Ledger contract: the durable
// append-and-upsert store for snapshots, alert states and delivery records
// that the core routes all cross-invocation state through (spec.md §4.6).
// The core never holds a shared in-memory cache; every implementation of
// this interface is responsible for its own storage and concurrency.
package ledger

import (
	"context"
	"errors"

	"github.com/predixa/dataguard/internal/model"
)

// ErrNotFound is returned by lookups with no matching row. Callers that
// treat "never set" as a valid state (GetAlertState, GetLastSnapshot)
// instead return a nil pointer with a nil error; ErrNotFound is reserved
// for operations where the caller requires the row to already exist.
var ErrNotFound = errors.New("ledger: not found")

// ListFilter narrows list_snapshots (spec.md §4.6). The zero value applies
// no filtering beyond the implicit newest-first ordering.
type ListFilter struct {
	Limit        int
	MaxAgeDays   int
	SuccessOnly  bool
}

// PurgeOptions parameterizes purge_old_snapshots (spec.md §4.6).
type PurgeOptions struct {
	MaxAgeDays  int
	MinPerSource int
}

// Ledger is the full State Ledger contract. Writes are serialized per
// source; concurrent reads are always permitted; SetAlertState is atomic
// (spec.md §4.6 "Concurrency contract").
type Ledger interface {
	AppendSnapshot(ctx context.Context, source string, snapshot model.Snapshot) (int64, error)
	GetLastSnapshot(ctx context.Context, source string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, source string, filter ListFilter) ([]model.Snapshot, error)

	GetAlertState(ctx context.Context, source, target string) (*model.AlertState, error)
	SetAlertState(ctx context.Context, state model.AlertState) error

	LogDelivery(ctx context.Context, record model.DeliveryRecord) error

	PurgeOldSnapshots(ctx context.Context, opts PurgeOptions) (int64, error)

	Close()
}
