// Package scheduler is the reference Scheduler (spec.md §6): it invokes
// the core with (source, now) at intervals determined by each source's
// configured polling interval, enforcing "at most one concurrent check
// per source". The Registry/per-source-ticker/worker-pool shape follows
// the teacher's job scheduler (services/scheduler-service/internal/
// scheduler/scheduler.go), generalized from rule-polling to
// source-checking: one ticker goroutine per source feeding a bounded
// worker pool, with overlapping runs for the same source skipped rather
// than queued, since the core has no use for a backlog of stale checks.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SourceSpec is the subset of source configuration the Scheduler itself
// needs: identity and polling cadence. Collector/policy/target
// configuration lives one layer up, in internal/config.
type SourceSpec struct {
	Name            string
	IntervalSeconds int
}

func (s SourceSpec) interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// CheckFunc runs one full Collect->Ledger->Baseline->Decide->Alert pass
// for source at instant now. The Scheduler does not own time; it passes
// its own tick's timestamp straight through (spec.md §6 "The core does
// not own time").
type CheckFunc func(ctx context.Context, source SourceSpec, now time.Time) error

type job struct {
	source  SourceSpec
	running atomic.Bool
	stop    chan struct{}
}

// Registry runs one ticker per scheduled source and dispatches due checks
// onto a bounded worker pool.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*job

	check   CheckFunc
	queue   chan *job
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRegistry builds a Registry with workers concurrent check executors.
// check is invoked at most once at a time per source, regardless of
// worker count.
func NewRegistry(check CheckFunc, workers int, logger *slog.Logger) *Registry {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg := &Registry{
		jobs:   map[string]*job{},
		check:  check,
		queue:  make(chan *job, 256),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		go reg.worker()
	}
	return reg
}

// Stop cancels every running ticker and drains no further checks.
// In-flight checks are not waited for; the context they run under is
// cancelled.
func (r *Registry) Stop() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		close(j.stop)
	}
	r.jobs = map[string]*job{}
}

// Schedule starts (or restarts) ticking for source. Calling Schedule again
// for an already-scheduled source replaces its ticker with the new
// interval.
func (r *Registry) Schedule(source SourceSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[source.Name]; ok {
		close(existing.stop)
	}
	j := &job{source: source, stop: make(chan struct{})}
	r.jobs[source.Name] = j
	go r.runTicker(j)
}

// Unschedule stops ticking source. A check already in flight runs to
// completion.
func (r *Registry) Unschedule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[name]; ok {
		close(j.stop)
		delete(r.jobs, name)
	}
}

// Sources lists every currently scheduled source name.
func (r *Registry) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}

func (r *Registry) runTicker(j *job) {
	ticker := time.NewTicker(j.source.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.enqueue(j)
		case <-j.stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// enqueue drops the tick rather than queue it when a check for this
// source is already running or the worker pool is saturated (spec.md §6
// "at most one concurrent check per source").
func (r *Registry) enqueue(j *job) {
	if !j.running.CompareAndSwap(false, true) {
		r.logger.Warn("skipped tick, check already running", slog.String("source", j.source.Name))
		return
	}
	select {
	case r.queue <- j:
	default:
		j.running.Store(false)
		r.logger.Warn("dropped tick, worker pool saturated", slog.String("source", j.source.Name))
	}
}

func (r *Registry) worker() {
	for {
		select {
		case j := <-r.queue:
			r.execute(j)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Registry) execute(j *job) {
	defer j.running.Store(false)
	now := time.Now().UTC()
	if err := r.check(r.ctx, j.source, now); err != nil {
		r.logger.Error("check failed", slog.String("source", j.source.Name), slog.String("error", err.Error()))
	}
}
