package sqlcollector

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/predixa/dataguard/internal/collector"
)

// NewMySQL opens a database/sql connection against cfg.DSN using the
// go-sql-driver/mysql driver and returns a Probe ready to Collect
// (spec.md §6).
func NewMySQL(cfg collector.SourceConfig) (*Probe, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql collector connection: %w", err)
	}
	return &Probe{DB: db, Config: cfg}, nil
}
