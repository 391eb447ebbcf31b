// Package pg is the reference Postgres-backed State Ledger (spec.md
// §4.6). Pool construction follows the teacher's rule-service storage
// layer (internal/storage/db.go, internal/storage/repository.go): a single
// Ledger type wrapping a pgxpool, exposing one method per ledger
// operation, each a single statement.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predixa/dataguard/internal/ledger"
	"github.com/predixa/dataguard/internal/model"
)

// schema creates the logical tables spec.md §6 names: snapshots,
// alert_states (unique on source+target), delivery_log, and a
// schema_meta versioning row. Concrete column types are an
// implementation detail left to this package.
const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	row_count BIGINT,
	latest_timestamp TIMESTAMPTZ,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS snapshots_source_collected_at_idx ON snapshots (source, collected_at DESC);

CREATE TABLE IF NOT EXISTS alert_states (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	last_status TEXT NOT NULL,
	last_reason_hash TEXT NOT NULL,
	last_change_at TIMESTAMPTZ NOT NULL,
	last_sent_at TIMESTAMPTZ NOT NULL,
	cooldown_until TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (source, target)
);

CREATE TABLE IF NOT EXISTS delivery_log (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload_hash TEXT NOT NULL,
	delivered_at TIMESTAMPTZ NOT NULL,
	success BOOLEAN NOT NULL,
	http_status INTEGER NOT NULL,
	latency_ms BIGINT NOT NULL,
	error_message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS delivery_log_source_target_idx ON delivery_log (source, target, delivered_at DESC);
`

const schemaVersion = 1

// Ledger is the Postgres-backed State Ledger. The zero value is not
// usable; construct with Open.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open connects to dsn, applies the schema if absent, and returns a ready
// Ledger. It mirrors the teacher's NewStore: connect, ping with a bounded
// timeout, fail closed.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	if err := ensureSchemaVersion(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Ledger{pool: pool}, nil
}

func ensureSchemaVersion(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM schema_meta`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := pool.Exec(ctx, `INSERT INTO schema_meta (version) VALUES ($1)`, schemaVersion)
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

// AppendSnapshot inserts s and returns its assigned id. Postgres serializes
// concurrent inserts into the same table; per-source write ordering is
// guaranteed by CollectedAt, not by an explicit lock (spec.md §4.6
// "Concurrency contract").
func (l *Ledger) AppendSnapshot(ctx context.Context, source string, s model.Snapshot) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx, `
		INSERT INTO snapshots (source, collected_at, status, row_count, latest_timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		source, s.CollectedAt, string(s.Status), s.RowCount, s.LatestTimestamp, metadataJSON(s.Metadata)).Scan(&id)
	return id, err
}

// GetLastSnapshot returns source's most recent snapshot by CollectedAt, or
// nil if it has never been probed.
func (l *Ledger) GetLastSnapshot(ctx context.Context, source string) (*model.Snapshot, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT source, collected_at, status, row_count, latest_timestamp, metadata
		FROM snapshots WHERE source = $1
		ORDER BY collected_at DESC LIMIT 1`, source)
	s, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnapshots returns source's snapshots newest-first, filtered before
// Limit truncates the result set (spec.md §4.6).
func (l *Ledger) ListSnapshots(ctx context.Context, source string, filter ledger.ListFilter) ([]model.Snapshot, error) {
	query := `SELECT source, collected_at, status, row_count, latest_timestamp, metadata FROM snapshots WHERE source = $1`
	args := []any{source}

	if filter.SuccessOnly {
		query += ` AND status = $2`
		args = append(args, string(model.CollectSuccess))
	}
	if filter.MaxAgeDays > 0 {
		query += fmt.Sprintf(` AND collected_at > now() - interval '%d days'`, filter.MaxAgeDays)
	}
	query += ` ORDER BY collected_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetAlertState returns the last-notified state for (source, target), or
// nil if the pair has never been notified.
func (l *Ledger) GetAlertState(ctx context.Context, source, target string) (*model.AlertState, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT source, target, last_status, last_reason_hash, last_change_at, last_sent_at, cooldown_until
		FROM alert_states WHERE source = $1 AND target = $2`, source, target)

	var state model.AlertState
	var status string
	err := row.Scan(&state.Source, &state.Target, &status, &state.LastReasonHash,
		&state.LastChangeAt, &state.LastSentAt, &state.CooldownUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.LastStatus = model.Status(status)
	return &state, nil
}

// SetAlertState atomically upserts state keyed by (source, target), relying
// on Postgres's ON CONFLICT to make the write a single round trip.
func (l *Ledger) SetAlertState(ctx context.Context, state model.AlertState) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO alert_states (source, target, last_status, last_reason_hash, last_change_at, last_sent_at, cooldown_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source, target) DO UPDATE SET
			last_status = EXCLUDED.last_status,
			last_reason_hash = EXCLUDED.last_reason_hash,
			last_change_at = EXCLUDED.last_change_at,
			last_sent_at = EXCLUDED.last_sent_at,
			cooldown_until = EXCLUDED.cooldown_until`,
		state.Source, state.Target, string(state.LastStatus), state.LastReasonHash,
		state.LastChangeAt, state.LastSentAt, state.CooldownUntil)
	return err
}

// LogDelivery appends record to the append-only delivery log.
func (l *Ledger) LogDelivery(ctx context.Context, record model.DeliveryRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO delivery_log (source, target, event_type, payload_hash, delivered_at, success, http_status, latency_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.Source, record.Target, string(record.EventType), record.PayloadHash,
		record.DeliveredAt, record.Success, record.HTTPStatus, record.LatencyMS, record.ErrorMessage)
	return err
}

// PurgeOldSnapshots deletes snapshots older than opts.MaxAgeDays while
// retaining at least opts.MinPerSource most recent successful snapshots per
// source (spec.md §4.6), in one statement covering every source, using a
// window function partitioned by source to rank retained rows.
func (l *Ledger) PurgeOldSnapshots(ctx context.Context, opts ledger.PurgeOptions) (int64, error) {
	tag, err := l.pool.Exec(ctx, `
		WITH success_ranked AS (
			SELECT id, row_number() OVER (PARTITION BY source ORDER BY collected_at DESC) AS rnk
			FROM snapshots
			WHERE status = $1
		)
		DELETE FROM snapshots
		WHERE collected_at < now() - ($2 || ' days')::interval
		AND id NOT IN (
			SELECT id FROM success_ranked WHERE rnk <= $3
		)`,
		string(model.CollectSuccess), opts.MaxAgeDays, opts.MinPerSource)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (model.Snapshot, error) {
	var s model.Snapshot
	var status string
	var meta map[string]string
	if err := row.Scan(&s.Source, &s.CollectedAt, &status, &s.RowCount, &s.LatestTimestamp, &meta); err != nil {
		return model.Snapshot{}, err
	}
	s.Status = model.CollectStatus(status)
	s.Metadata = meta
	return s, nil
}

func metadataJSON(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
