// Package delivery implements the Delivery Client: an HTTP emitter with
// bounded retries, per-attempt timeouts, and a result record (spec.md
// §4.5). The retry-loop shape (attempt, sleep, classify-and-retry) is
// grounded on the pack's webhook sender (ppiankov-chainwatch's
// internal/alert.Send), generalized from a fixed 3-attempt/backoff-by-
// attempt-number schedule to the spec's fixed 4-attempt delay table and
// explicit status-code retry classification.
package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/predixa/dataguard/internal/model"
)

// retryDelays is the fixed attempt schedule from spec.md §4.5: at most 4
// attempts, delayed 0, 1s, 5s, 15s before each.
var retryDelays = []time.Duration{0, time.Second, 5 * time.Second, 15 * time.Second}

const defaultTimeout = 10 * time.Second

// Client is the reference Delivery Client implementation.
type Client struct {
	HTTPClient *http.Client
}

// New builds a Client with a sane default transport.
func New() *Client {
	return &Client{HTTPClient: &http.Client{}}
}

// Send posts one payload to one target, retrying per the fixed schedule
// on network errors, timeouts and retryable HTTP statuses. It never
// returns an error for a terminal (non-retryable) HTTP response — the
// outcome is encoded entirely in the returned DeliveryResult, per
// spec.md §4.5's contract.
func (c *Client) Send(ctx context.Context, target model.Target, payload model.WebhookPayload) (model.DeliveryResult, error) {
	body, err := payload.CanonicalJSON()
	if err != nil {
		return model.DeliveryResult{}, fmt.Errorf("encode payload: %w", err)
	}

	timeout := defaultTimeout
	if target.TimeoutSeconds > 0 {
		timeout = time.Duration(target.TimeoutSeconds) * time.Second
	}

	start := time.Now()
	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 0; attempt < len(retryDelays); attempt++ {
		attempts++
		if attempt > 0 {
			if err := sleepOrCancel(ctx, retryDelays[attempt]); err != nil {
				return finish(start, attempts, false, lastStatus, err.Error()), nil
			}
		}

		status, err := c.attempt(ctx, timeout, target, payload.EventType, payload.Source.Name, body)
		if err == nil && status >= 200 && status < 300 {
			return finish(start, attempts, true, status, ""), nil
		}
		lastStatus = status
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("webhook responded with HTTP %d", status)
		}
		if !retryable(status, err) {
			break
		}
	}

	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return finish(start, attempts, false, lastStatus, msg), nil
}

func (c *Client) attempt(ctx context.Context, timeout time.Duration, target model.Target, eventType model.EventType, sourceName string, body []byte) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event", string(eventType))
	req.Header.Set("X-Source", sourceName)
	if target.Secret != "" {
		req.Header.Set("X-Signature", "sha256="+signHex(target.Secret, body))
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// signHex computes the HMAC-SHA256 of body keyed by secret, both in UTF-8,
// and returns the lowercase hex digest (spec.md §6 "HMAC").
func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// retryable reports whether a completed attempt should be retried:
// network/timeout errors, 5xx, or 408/425/429 (spec.md §4.5).
func retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	if status >= 500 && status < 600 {
		return true
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return false
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func finish(start time.Time, attempts int, success bool, status int, errMsg string) model.DeliveryResult {
	return model.DeliveryResult{
		Success:      success,
		HTTPStatus:   status,
		LatencyMS:    time.Since(start).Milliseconds(),
		ErrorMessage: errMsg,
		Attempts:     attempts,
	}
}
