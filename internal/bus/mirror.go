// Package bus mirrors committed checks onto NATS for downstream
// dashboards and log shippers. It is additive observability only: it
// never gates or replaces webhook delivery (the Alert Pipeline's
// DeliveryClient), and a mirror publish failure never fails a check.
// Connection and publish shape follow the teacher's rule-service
// bus.Publisher (internal/bus/nats.go).
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/predixa/dataguard/internal/model"
)

// CheckEvent is the mirrored record for one source's completed check:
// its decision status and reason codes, plus optional delivery records.
// The agent's check loop (cmd/agentd) leaves Deliveries empty.
type CheckEvent struct {
	Source    string               `json:"source"`
	Status    model.Status         `json:"status"`
	Reasons   []string             `json:"reasons"`
	Deliveries []model.DeliveryRecord `json:"deliveries,omitempty"`
}

// Mirror publishes CheckEvents to a per-source NATS subject. The zero
// value with a nil Conn is a usable no-op mirror, so callers that leave
// the bus disabled in config don't need a separate code path.
type Mirror struct {
	Conn    *nats.Conn
	Subject string
	Logger  *slog.Logger
}

// Connect dials url and returns a ready Mirror publishing to subjectPrefix
// with each source name appended (e.g. "checks.orders_db").
func Connect(url, subjectPrefix string, logger *slog.Logger) (*Mirror, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{Conn: conn, Subject: subjectPrefix, Logger: logger}, nil
}

// Close drains and closes the underlying connection. Safe to call on a
// disabled (nil Conn) Mirror.
func (m *Mirror) Close() {
	if m == nil || m.Conn == nil {
		return
	}
	m.Conn.Drain()
	m.Conn.Close()
}

// Publish mirrors evt onto "<Subject>.<evt.Source>". Failures are logged,
// never returned: a broken mirror must not affect check outcomes.
func (m *Mirror) Publish(evt CheckEvent) {
	if m == nil || m.Conn == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		m.Logger.Warn("failed to encode mirrored check event", slog.String("source", evt.Source), slog.String("error", err.Error()))
		return
	}
	subject := fmt.Sprintf("%s.%s", m.Subject, evt.Source)
	if err := m.Conn.Publish(subject, data); err != nil {
		m.Logger.Warn("failed to publish mirrored check event", slog.String("source", evt.Source), slog.String("error", err.Error()))
	}
}
