package sqlcollector

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/predixa/dataguard/internal/collector"
)

// NewPostgres opens a database/sql connection against cfg.DSN using the
// lib/pq driver and returns a Probe ready to Collect (spec.md §6).
func NewPostgres(cfg collector.SourceConfig) (*Probe, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres collector connection: %w", err)
	}
	return &Probe{DB: db, Config: cfg}, nil
}
