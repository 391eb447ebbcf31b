// Package core wires one source's Collect -> Ledger.append -> Baseline ->
// Decide -> Alert pass (spec.md §5 "Scheduling model"). It holds no
// cross-invocation state itself; everything that must survive between
// checks lives in the Ledger.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/predixa/dataguard/internal/alertpipeline"
	"github.com/predixa/dataguard/internal/baseline"
	"github.com/predixa/dataguard/internal/collector"
	"github.com/predixa/dataguard/internal/decision"
	"github.com/predixa/dataguard/internal/ledger"
	"github.com/predixa/dataguard/internal/model"
)

// SourceSpec bundles everything one source's check needs beyond the
// shared Ledger/Delivery/AgentID.
type SourceSpec struct {
	Name     string
	Type     string
	Collect  collector.Collector
	Policy   decision.SourcePolicy
	Baseline baseline.WindowPolicy
	Targets  []model.Target
}

// Result is what one Check call produced, for callers (the admin HTTP
// surface, the mirror publisher) that want to inspect the outcome.
type Result struct {
	Snapshot model.Snapshot
	Decision model.Decision
	Outcomes []alertpipeline.SendOutcome
}

// Core runs Check for any configured source against a shared Ledger and
// Pipeline.
type Core struct {
	Ledger   ledger.Ledger
	Pipeline *alertpipeline.Pipeline
}

// Check runs one full pass for source at instant now: collect, append the
// snapshot, recompute the baseline from ledger history, decide, and
// reconcile alerts. A Ledger error aborts the check and leaves AlertState
// untouched (spec.md §7 "Ledger errors").
func (c *Core) Check(ctx context.Context, source SourceSpec, now time.Time) (Result, error) {
	snapshot := source.Collect.Collect(ctx, now)

	if _, err := c.Ledger.AppendSnapshot(ctx, source.Name, snapshot); err != nil {
		return Result{}, fmt.Errorf("append snapshot for %s: %w", source.Name, err)
	}

	history, err := c.Ledger.ListSnapshots(ctx, source.Name, ledger.ListFilter{
		Limit:       source.Baseline.WindowSize,
		MaxAgeDays:  source.Baseline.MaxAgeDays,
		SuccessOnly: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("list snapshots for %s: %w", source.Name, err)
	}

	bl := baseline.Compute(now, history, source.Baseline)
	d := decision.Evaluate(now, snapshot, bl, source.Policy)

	outcomes, err := c.Pipeline.Reconcile(ctx, now, alertpipeline.SourceInfo{Name: source.Name, Type: source.Type}, snapshot, d, source.Targets)
	if err != nil {
		return Result{Snapshot: snapshot, Decision: d}, fmt.Errorf("reconcile alerts for %s: %w", source.Name, err)
	}

	return Result{Snapshot: snapshot, Decision: d, Outcomes: outcomes}, nil
}
