package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/predixa/dataguard/internal/model"
)

const validYAML = `
agent_id: agent-1
admin_addr: ":8090"
workers: 4
ledger:
  driver: memory
targets:
  - name: ops
    url: https://example.com/hook
    secret: shh
    events: [anomaly, recovery]
    cooldown_minutes: 60
sources:
  - name: orders_db
    type: postgres
    dsn: postgres://localhost/orders
    query: "SELECT count(*) AS row_count, max(created_at) AS latest_timestamp FROM orders"
    interval_seconds: 300
    policy:
      min_row_count: 100
      deviation_factor: 3.0
    baseline:
      window_size: 50
      max_age_days: 30
    targets: [ops]
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AgentID != "agent-1" || len(cfg.Sources) != 1 || len(cfg.Targets) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Sources[0].Policy.MinRowCount == nil || *cfg.Sources[0].Policy.MinRowCount != 100 {
		t.Fatalf("expected min_row_count to parse, got %+v", cfg.Sources[0].Policy)
	}
}

func TestLoadRejectsMissingAgentID(t *testing.T) {
	path := writeTemp(t, `
sources:
  - name: orders_db
    query: "SELECT 1 AS row_count"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing agent_id to be rejected")
	}
}

func TestLoadRejectsNoSources(t *testing.T) {
	path := writeTemp(t, `agent_id: agent-1`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a config with no sources to be rejected")
	}
}

func TestLoadRejectsDuplicateSourceNames(t *testing.T) {
	path := writeTemp(t, `
agent_id: agent-1
sources:
  - name: orders_db
    query: "SELECT 1 AS row_count"
  - name: orders_db
    query: "SELECT 1 AS row_count"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duplicate source names to be rejected")
	}
}

func TestLoadRejectsUndefinedTargetReference(t *testing.T) {
	path := writeTemp(t, `
agent_id: agent-1
sources:
  - name: orders_db
    query: "SELECT 1 AS row_count"
    targets: [missing]
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a reference to an undefined target to be rejected")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected a missing file to be rejected")
	}
}

func TestTargetsForResolvesByName(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	targets := cfg.TargetsFor(cfg.Sources[0])
	if len(targets) != 1 || targets[0].Name != "ops" {
		t.Fatalf("expected the ops target resolved, got %+v", targets)
	}
	if len(targets[0].Events) != 2 || targets[0].Events[0] != model.EventAnomaly {
		t.Fatalf("expected events to map onto model.EventType, got %+v", targets[0].Events)
	}
}
