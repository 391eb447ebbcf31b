// Package alertpipeline implements the Alert Pipeline: the stateful
// reconciler that turns a Decision for one source into at most one webhook
// payload per configured target, honoring deduplication, cooldown and
// event-type subscriptions, and commits the outcome durably (spec.md §4.4).
//
// The per-target worker shape (iterate targets, build, sign, attempt
// delivery, persist) follows the same "evaluate then commit" rhythm as the
// teacher's job execution loop (services/scheduler-service/internal/scheduler/scheduler.go
// Registry.execute), generalized from "fire an alert record" to "reconcile
// a typed state machine".
package alertpipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/predixa/dataguard/internal/model"
)

// SourceInfo identifies the probed source for payload construction.
type SourceInfo struct {
	Name string
	Type string
}

// Ledger is the slice of the State Ledger contract (spec.md §4.6) the
// pipeline needs.
type Ledger interface {
	GetAlertState(ctx context.Context, source, target string) (*model.AlertState, error)
	SetAlertState(ctx context.Context, state model.AlertState) error
	LogDelivery(ctx context.Context, record model.DeliveryRecord) error
}

// DeliveryClient is the slice of the Delivery Client contract (spec.md
// §4.5) the pipeline needs.
type DeliveryClient interface {
	Send(ctx context.Context, target model.Target, payload model.WebhookPayload) (model.DeliveryResult, error)
}

// SendOutcome describes one target's reconciliation result. Result is nil
// in dry-run mode, where nothing is actually delivered.
type SendOutcome struct {
	Target    string
	EventType model.EventType
	Payload   model.WebhookPayload
	Result    *model.DeliveryResult
}

// Pipeline is the Alert Pipeline. AgentID is echoed into every payload's
// context. DryRun, when true, computes everything but never invokes
// Delivery or mutates Ledger state (spec.md §4.4 "Dry-run mode").
type Pipeline struct {
	Ledger   Ledger
	Delivery DeliveryClient
	AgentID  string
	DryRun   bool
}

// Reconcile runs the per-target state machine for one source's Decision
// and returns the set of outcomes, one per target that actually received
// (or, in dry-run, would have received) a payload.
func (p *Pipeline) Reconcile(ctx context.Context, now time.Time, source SourceInfo, snapshot model.Snapshot, decision model.Decision, targets []model.Target) ([]SendOutcome, error) {
	outcomes := make([]SendOutcome, 0, len(targets))
	currentHash := model.ReasonHash(decision.ReasonCodes())

	for _, tgt := range targets {
		prior, err := p.Ledger.GetAlertState(ctx, source.Name, tgt.Name)
		if err != nil {
			return outcomes, fmt.Errorf("get alert state for %s/%s: %w", source.Name, tgt.Name, err)
		}

		priorStatus := model.StatusOK
		if prior != nil {
			priorStatus = prior.LastStatus
		}

		event := decideEvent(priorStatus, decision.Status, currentHash, prior, now)
		if event == "" {
			continue
		}
		if !subscribed(tgt.Events, event) {
			continue
		}

		payload := buildPayload(now, p.AgentID, source, snapshot, decision, event)
		outcome := SendOutcome{Target: tgt.Name, EventType: event, Payload: payload}

		if p.DryRun {
			outcomes = append(outcomes, outcome)
			continue
		}

		result, sendErr := p.Delivery.Send(ctx, tgt, payload)
		body, _ := payload.CanonicalJSON()
		record := model.DeliveryRecord{
			Source:       source.Name,
			Target:       tgt.Name,
			EventType:    event,
			PayloadHash:  model.PayloadHash(body),
			DeliveredAt:  now,
			Success:      result.Success,
			HTTPStatus:   result.HTTPStatus,
			LatencyMS:    result.LatencyMS,
			ErrorMessage: result.ErrorMessage,
		}
		if sendErr != nil && record.ErrorMessage == "" {
			record.ErrorMessage = sendErr.Error()
		}
		if err := p.Ledger.LogDelivery(ctx, record); err != nil {
			return outcomes, fmt.Errorf("log delivery for %s/%s: %w", source.Name, tgt.Name, err)
		}

		changeAt := now
		if prior != nil && priorStatus == decision.Status {
			changeAt = prior.LastChangeAt
		}
		cooldown := time.Duration(tgt.CooldownMinutes) * time.Minute
		newState := model.AlertState{
			Source:         source.Name,
			Target:         tgt.Name,
			LastStatus:     decision.Status,
			LastReasonHash: currentHash,
			LastChangeAt:   changeAt,
			LastSentAt:     now,
			CooldownUntil:  now.Add(cooldown),
		}
		if err := p.Ledger.SetAlertState(ctx, newState); err != nil {
			return outcomes, fmt.Errorf("set alert state for %s/%s: %w", source.Name, tgt.Name, err)
		}

		res := result
		outcome.Result = &res
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// decideEvent implements the per-target state machine table in spec.md
// §4.4. prior is nil when the pair has never been notified.
func decideEvent(priorStatus, current model.Status, currentHash string, prior *model.AlertState, now time.Time) model.EventType {
	if priorStatus == current {
		if prior == nil {
			return ""
		}
		if prior.LastReasonHash == currentHash {
			return ""
		}
		if now.Before(prior.CooldownUntil) {
			return ""
		}
		return eventForStatus(current)
	}

	switch {
	case priorStatus == model.StatusOK && current == model.StatusWarning:
		return model.EventWarning
	case priorStatus == model.StatusOK && current == model.StatusAnomaly:
		return model.EventAnomaly
	case priorStatus == model.StatusWarning && current == model.StatusAnomaly:
		return model.EventAnomaly
	case priorStatus == model.StatusAnomaly && current == model.StatusWarning:
		return ""
	case (priorStatus == model.StatusWarning || priorStatus == model.StatusAnomaly) && current == model.StatusOK:
		return model.EventRecovery
	default:
		return ""
	}
}

func eventForStatus(status model.Status) model.EventType {
	switch status {
	case model.StatusAnomaly:
		return model.EventAnomaly
	case model.StatusWarning:
		return model.EventWarning
	default:
		return ""
	}
}

func subscribed(events []model.EventType, event model.EventType) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

func buildPayload(now time.Time, agentID string, source SourceInfo, snapshot model.Snapshot, decision model.Decision, event model.EventType) model.WebhookPayload {
	reasons := make([]model.ReasonPayload, len(decision.Reasons))
	for i, r := range decision.Reasons {
		reasons[i] = model.ReasonPayload{Code: r.Code, Message: r.Message, Severity: r.Severity, Details: r.Details}
	}

	metrics := map[string]any{}
	for k, v := range decision.Metrics {
		metrics[k] = v
	}
	if snapshot.RowCount != nil {
		metrics["row_count"] = *snapshot.RowCount
	}
	if snapshot.LatestTimestamp != nil {
		metrics["latest_timestamp"] = model.NewTimestamp(*snapshot.LatestTimestamp)
	} else {
		metrics["latest_timestamp"] = nil
	}

	var baseline model.BaselinePayload
	if decision.Baseline != nil {
		baseline = model.BaselinePayload{
			SnapshotCount:           decision.Baseline.SnapshotCount,
			RowCountMedian:          decision.Baseline.RowCountMedian,
			RowCountMin:             decision.Baseline.RowCountMin,
			RowCountMax:             decision.Baseline.RowCountMax,
			RowCountStdDev:          decision.Baseline.RowCountStdDev,
			ExpectedIntervalSeconds: decision.Baseline.ExpectedIntervalSeconds,
		}
	}

	return model.WebhookPayload{
		Version:   model.SchemaVersion,
		EventID:   uuid.New().String(),
		EventType: event,
		Timestamp: model.NewTimestamp(now),
		Source:    model.SourceDescriptor{Name: source.Name, Type: source.Type},
		Decision: model.DecisionPayload{
			Status:     statusForWire(decision.Status),
			Reasons:    reasons,
			Confidence: decision.Confidence,
		},
		Metrics:  metrics,
		Baseline: baseline,
		Context:  model.ContextPayload{AgentID: agentID},
	}
}

// statusForWire maps an internal Status onto the wire enum, which never
// carries UNKNOWN (spec.md §6).
func statusForWire(status model.Status) model.Status {
	if status == model.StatusUnknown {
		return model.StatusOK
	}
	return status
}
