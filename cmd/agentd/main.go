package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/predixa/dataguard/internal/alertpipeline"
	"github.com/predixa/dataguard/internal/baseline"
	"github.com/predixa/dataguard/internal/bus"
	"github.com/predixa/dataguard/internal/collector"
	"github.com/predixa/dataguard/internal/collector/sqlcollector"
	"github.com/predixa/dataguard/internal/config"
	"github.com/predixa/dataguard/internal/core"
	"github.com/predixa/dataguard/internal/delivery"
	"github.com/predixa/dataguard/internal/ledger"
	"github.com/predixa/dataguard/internal/ledger/memory"
	"github.com/predixa/dataguard/internal/ledger/pg"
	"github.com/predixa/dataguard/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	configPath := getenv("CONFIG_PATH", "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := buildLedger(ctx, cfg)
	if err != nil {
		logger.Error("failed to open ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var mirror *bus.Mirror
	if cfg.Bus.Enabled {
		mirror, err = bus.Connect(cfg.Bus.URL, cfg.Bus.Subject, logger)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer mirror.Close()
	}

	pipeline := &alertpipeline.Pipeline{
		Ledger:   store,
		Delivery: delivery.New(),
		AgentID:  cfg.AgentID,
		DryRun:   cfg.DryRun,
	}
	c := &core.Core{Ledger: store, Pipeline: pipeline}

	specs := map[string]core.SourceSpec{}
	for _, sc := range cfg.Sources {
		probe, err := sqlcollector.New(collector.SourceConfig{
			Name:           sc.Name,
			Type:           sc.Type,
			DSN:            sc.DSN,
			Query:          sc.Query,
			TimeoutSeconds: sc.TimeoutSeconds,
		})
		if err != nil {
			logger.Error("failed to build collector", slog.String("source", sc.Name), slog.String("error", err.Error()))
			os.Exit(1)
		}
		specs[sc.Name] = core.SourceSpec{
			Name:     sc.Name,
			Type:     sc.Type,
			Collect:  probe,
			Policy:   sc.Policy.ToModel(),
			Baseline: baseline.WindowPolicy{WindowSize: sc.Baseline.WindowSize, MaxAgeDays: sc.Baseline.MaxAgeDays},
			Targets:  cfg.TargetsFor(sc),
		}
	}

	results := newResultBoard()

	check := func(ctx context.Context, src scheduler.SourceSpec, now time.Time) error {
		spec, ok := specs[src.Name]
		if !ok {
			return fmt.Errorf("no collector configured for source %q", src.Name)
		}
		res, err := c.Check(ctx, spec, now)
		if err != nil {
			return err
		}
		results.set(src.Name, res)
		if mirror != nil {
			mirror.Publish(bus.CheckEvent{
				Source:  src.Name,
				Status:  res.Decision.Status,
				Reasons: res.Decision.ReasonCodes(),
			})
		}
		return nil
	}

	reg := scheduler.NewRegistry(check, cfg.Workers, logger)
	defer reg.Stop()
	for _, sc := range cfg.Sources {
		reg.Schedule(scheduler.SourceSpec{Name: sc.Name, IntervalSeconds: sc.IntervalSeconds})
	}

	stopRetention := startRetention(ctx, store, cfg.Retention, logger)
	defer stopRetention()

	go startAdminServer(cfg.AdminAddr, cfg, reg, results, logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.Info("shutting down")
}

func buildLedger(ctx context.Context, cfg config.Config) (ledger.Ledger, error) {
	switch cfg.Ledger.Driver {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		return pg.Open(ctx, cfg.Ledger.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Ledger.Driver)
	}
}

// startRetention runs PurgeOldSnapshots on an interval per cfg (spec.md
// §4.6 "purge_old_snapshots"). A zero IntervalHours disables the ticker
// entirely rather than purge on every tick.
func startRetention(ctx context.Context, store ledger.Ledger, cfg config.RetentionConfig, logger *slog.Logger) func() {
	if cfg.IntervalHours <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.IntervalHours) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purged, err := store.PurgeOldSnapshots(ctx, ledger.PurgeOptions{
					MaxAgeDays:   cfg.MaxAgeDays,
					MinPerSource: cfg.MinPerSource,
				})
				if err != nil {
					logger.Error("retention purge failed", slog.String("error", err.Error()))
					continue
				}
				if purged > 0 {
					logger.Info("purged old snapshots", slog.Int64("count", purged))
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// resultBoard holds the most recent core.Result per source for the admin
// /sources endpoint.
type resultBoard struct {
	mu      sync.RWMutex
	results map[string]core.Result
}

func newResultBoard() *resultBoard {
	return &resultBoard{results: map[string]core.Result{}}
}

func (b *resultBoard) set(source string, res core.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[source] = res
}

func (b *resultBoard) snapshot() map[string]core.Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]core.Result, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out
}

func startAdminServer(addr string, cfg config.Config, reg *scheduler.Registry, results *resultBoard, logger *slog.Logger) {
	if addr == "" {
		addr = ":8090"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		latest := results.snapshot()
		out := make([]map[string]any, 0, len(cfg.Sources))
		for _, sc := range cfg.Sources {
			entry := map[string]any{"name": sc.Name, "type": sc.Type, "interval_seconds": sc.IntervalSeconds}
			if res, ok := latest[sc.Name]; ok {
				entry["status"] = res.Decision.Status
				entry["reasons"] = res.Decision.ReasonCodes()
				entry["collected_at"] = res.Snapshot.CollectedAt
			}
			out = append(out, entry)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	logger.Info("admin server listening", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin server error", slog.String("error", err.Error()))
	}
}

func getenv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
