package sqlcollector

import (
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/predixa/dataguard/internal/collector"
)

// NewMSSQL opens a database/sql connection against cfg.DSN using the
// microsoft/go-mssqldb driver and returns a Probe ready to Collect
// (spec.md §6).
func NewMSSQL(cfg collector.SourceConfig) (*Probe, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mssql collector connection: %w", err)
	}
	return &Probe{DB: db, Config: cfg}, nil
}
