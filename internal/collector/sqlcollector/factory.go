package sqlcollector

import (
	"fmt"
	"strings"

	"github.com/predixa/dataguard/internal/collector"
)

// New dispatches to the driver-specific constructor for cfg.Type,
// mirroring the teacher's NewConnector switch (factory.go).
func New(cfg collector.SourceConfig) (*Probe, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "postgres", "postgresql":
		return NewPostgres(cfg)
	case "mysql":
		return NewMySQL(cfg)
	case "mssql", "sqlserver":
		return NewMSSQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported collector source type %q", cfg.Type)
	}
}
