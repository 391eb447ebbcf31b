// Package config loads the agent's YAML configuration: monitored
// sources, their collection/detection policies, webhook targets, and
// retention settings. The load-then-validate shape follows the teacher's
// mcp.LoadConfig (services/scheduler-service/internal/mcp/config.go):
// read the file, unmarshal with yaml.v3, reject anything structurally
// incomplete before it reaches the rest of the agent.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/predixa/dataguard/internal/decision"
	"github.com/predixa/dataguard/internal/model"
)

// TargetConfig is the YAML shape of a webhook destination.
type TargetConfig struct {
	Name            string   `yaml:"name"`
	URL             string   `yaml:"url"`
	Secret          string   `yaml:"secret"`
	Events          []string `yaml:"events"`
	CooldownMinutes int      `yaml:"cooldown_minutes"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
}

// ToModel converts a TargetConfig into the model.Target the Alert
// Pipeline consumes.
func (t TargetConfig) ToModel() model.Target {
	events := make([]model.EventType, len(t.Events))
	for i, e := range t.Events {
		events[i] = model.EventType(strings.ToLower(strings.TrimSpace(e)))
	}
	return model.Target{
		Name:            t.Name,
		URL:             t.URL,
		Secret:          t.Secret,
		Events:          events,
		CooldownMinutes: t.CooldownMinutes,
		TimeoutSeconds:  t.TimeoutSeconds,
	}
}

// PolicyConfig is the YAML shape of a source's detection policy.
type PolicyConfig struct {
	MinRowCount     *int64   `yaml:"min_row_count"`
	DeviationFactor float64  `yaml:"deviation_factor"`
	MaxAgeHours     *float64 `yaml:"max_age_hours"`
	FreshnessFactor float64  `yaml:"freshness_factor"`
}

// ToModel converts a PolicyConfig into the decision.SourcePolicy the
// Decision Engine consumes.
func (p PolicyConfig) ToModel() decision.SourcePolicy {
	return decision.SourcePolicy{
		Volume: decision.VolumePolicy{
			MinRowCount:     p.MinRowCount,
			DeviationFactor: p.DeviationFactor,
		},
		Freshness: decision.FreshnessPolicy{
			MaxAgeHours: p.MaxAgeHours,
			Factor:      p.FreshnessFactor,
		},
	}
}

// BaselineConfig is the YAML shape of a source's baseline window policy.
type BaselineConfig struct {
	WindowSize int `yaml:"window_size"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// SourceConfig is the YAML shape of one monitored source: how to collect
// from it, how to judge it, and which targets it notifies.
type SourceConfig struct {
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	DSN             string         `yaml:"dsn"`
	Query           string         `yaml:"query"`
	IntervalSeconds int            `yaml:"interval_seconds"`
	TimeoutSeconds  int            `yaml:"timeout_seconds"`
	Policy          PolicyConfig   `yaml:"policy"`
	Baseline        BaselineConfig `yaml:"baseline"`
	Targets         []string       `yaml:"targets"`
}

// RetentionConfig parameterizes purge_old_snapshots (spec.md §4.6).
type RetentionConfig struct {
	MaxAgeDays   int `yaml:"max_age_days"`
	MinPerSource int `yaml:"min_per_source"`
	IntervalHours int `yaml:"interval_hours"`
}

// LedgerConfig selects and parameterizes the State Ledger backend.
type LedgerConfig struct {
	Driver string `yaml:"driver"` // memory | postgres
	DSN    string `yaml:"dsn"`
}

// BusConfig configures the optional NATS mirror publisher.
type BusConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the agent's full YAML configuration.
type Config struct {
	AgentID    string          `yaml:"agent_id"`
	AdminAddr  string          `yaml:"admin_addr"`
	Workers    int             `yaml:"workers"`
	DryRun     bool            `yaml:"dry_run"`
	Ledger     LedgerConfig    `yaml:"ledger"`
	Bus        BusConfig       `yaml:"bus"`
	Retention  RetentionConfig `yaml:"retention"`
	Targets    []TargetConfig  `yaml:"targets"`
	Sources    []SourceConfig  `yaml:"sources"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	targetNames := map[string]bool{}
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target name is required")
		}
		if t.URL == "" {
			return fmt.Errorf("target %q: url is required", t.Name)
		}
		targetNames[t.Name] = true
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Query == "" {
			return fmt.Errorf("source %q: query is required", s.Name)
		}
		for _, tn := range s.Targets {
			if !targetNames[tn] {
				return fmt.Errorf("source %q references undefined target %q", s.Name, tn)
			}
		}
	}
	return nil
}

// TargetsFor resolves the model.Target list a source's Targets names
// reference.
func (c Config) TargetsFor(source SourceConfig) []model.Target {
	byName := make(map[string]TargetConfig, len(c.Targets))
	for _, t := range c.Targets {
		byName[t.Name] = t
	}
	out := make([]model.Target, 0, len(source.Targets))
	for _, name := range source.Targets {
		if t, ok := byName[name]; ok {
			out = append(out, t.ToModel())
		}
	}
	return out
}
