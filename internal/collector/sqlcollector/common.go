// Package sqlcollector is the reference SQL Collector: it runs a source's
// configured query against a database/sql connection and translates the
// result (or any failure) into a model.Snapshot, never letting a driver
// error cross the Collector boundary (spec.md §6). The row-scanning shape
// is grounded on the teacher's scanRowsToMaps (connector.go): scan into
// `any` placeholders, then read back by column name.
package sqlcollector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/predixa/dataguard/internal/collector"
	"github.com/predixa/dataguard/internal/model"
)

// Probe runs Config.Query against DB and reports one Snapshot per call. DB
// ownership (opening, closing, pooling) belongs to the constructor that
// built this Probe (New, per driver).
type Probe struct {
	DB     *sql.DB
	Config collector.SourceConfig
}

var _ collector.Collector = (*Probe)(nil)

// Collect runs the configured query and maps its result onto the
// row_count/latest_timestamp contract (spec.md §6). It never returns an
// error: every failure mode becomes a CollectFailed snapshot carrying
// error_code/error_message/duration_ms in Metadata.
func (p *Probe) Collect(ctx context.Context, now time.Time) model.Snapshot {
	start := time.Now()
	queryCtx, cancel := collector.WithTimeout(ctx, p.Config)
	defer cancel()

	row, err := p.runQuery(queryCtx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return model.NewFailedSnapshot(p.Config.Name, now, classify(err), err.Error(), elapsed)
	}

	rowCount, ok := row["row_count"]
	if !ok {
		return model.NewFailedSnapshot(p.Config.Name, now, "MISSING_ROW_COUNT",
			"query result did not contain a row_count column", elapsed)
	}
	count, ok := toInt64(rowCount)
	if !ok {
		return model.NewFailedSnapshot(p.Config.Name, now, "INVALID_ROW_COUNT",
			fmt.Sprintf("row_count column is not an integer: %v", rowCount), elapsed)
	}

	snapshot := model.Snapshot{
		Source:      p.Config.Name,
		CollectedAt: now.UTC(),
		Status:      model.CollectSuccess,
		RowCount:    &count,
	}
	if ts, ok := row["latest_timestamp"]; ok && ts != nil {
		parsed, ok := toTime(ts)
		if !ok {
			return model.NewFailedSnapshot(p.Config.Name, now, "INVALID_LATEST_TIMESTAMP",
				fmt.Sprintf("latest_timestamp column is not a timestamp: %v", ts), elapsed)
		}
		utc := parsed.UTC()
		snapshot.LatestTimestamp = &utc
	}
	return snapshot
}

func (p *Probe) runQuery(ctx context.Context) (map[string]any, error) {
	rows, err := p.DB.QueryContext(ctx, p.Config.Query)
	if err != nil {
		return nil, fmt.Errorf("run collector query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate result: %w", err)
		}
		return nil, errors.New("collector query returned no rows")
	}

	values := make([]any, len(cols))
	for i := range values {
		var v any
		values[i] = &v
	}
	if err := rows.Scan(values...); err != nil {
		return nil, fmt.Errorf("scan result row: %w", err)
	}

	result := make(map[string]any, len(cols))
	for i, col := range cols {
		result[col] = *(values[i].(*any))
	}
	return result, nil
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	if errors.Is(err, sql.ErrConnDone) {
		return "CONNECTION_FAILED"
	}
	return "QUERY_FAILED"
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case []byte:
		var n int64
		if _, err := fmt.Sscanf(string(t), "%d", &n); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
