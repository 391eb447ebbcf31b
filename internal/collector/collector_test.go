package collector

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeoutAppliesConfiguredDuration(t *testing.T) {
	cfg := SourceConfig{Name: "orders", TimeoutSeconds: 5}
	ctx, cancel := WithTimeout(context.Background(), cfg)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline to be set")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 5*time.Second {
		t.Fatalf("expected remaining time within (0, 5s], got %v", remaining)
	}
}

func TestWithTimeoutDefaultsWhenUnset(t *testing.T) {
	cfg := SourceConfig{Name: "orders"}
	ctx, cancel := WithTimeout(context.Background(), cfg)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline to be set")
	}
	remaining := time.Until(deadline)
	if remaining <= 20*time.Second || remaining > 30*time.Second {
		t.Fatalf("expected the default 30s timeout, got %v", remaining)
	}
}
