// Package collector defines the Collector interface (spec.md §6): a probe
// that must never throw through its boundary. Every failure, from a
// connection refusal to a malformed result set, is captured into a
// COLLECT_FAILED Snapshot instead of surfacing an error value, the same
// boundary-translation discipline the teacher's connectors apply to
// driver errors (connector.go's wrapped fmt.Errorf chains), pushed one
// level further so nothing ever crosses into the core as an exception.
package collector

import (
	"context"
	"time"

	"github.com/predixa/dataguard/internal/model"
)

// SourceConfig describes one monitored source: how to connect, what query
// defines its row_count/latest_timestamp columns, and how long a probe may
// run before it is treated as a timeout.
type SourceConfig struct {
	Name           string
	Type           string // mysql | postgres | mssql
	DSN            string
	Query          string
	TimeoutSeconds int
}

func (c SourceConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Collector probes one source and returns a Snapshot. Implementations must
// never return an error from Collect; collection failures are encoded as
// CollectFailed snapshots (spec.md §6).
type Collector interface {
	Collect(ctx context.Context, now time.Time) model.Snapshot
}

// WithTimeout bounds ctx by cfg's configured (or default) timeout. Callers
// that build their own Collector (e.g. sqlcollector) use this to get the
// same per-source timeout behavior the spec requires everywhere.
func WithTimeout(ctx context.Context, cfg SourceConfig) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.timeout())
}
