// Package keepalive periodically requests the relay's own public URL so hosting platforms
// that idle out quiet services keep the process running.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
)

const requestTimeout = 10 * time.Second

// StatusError is a non-2xx response from the keep-alive target.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

type Pinger struct {
	url    string
	client *http.Client
	policy retry.Policy
}

// NewPinger creates a pinger for url. A nil client uses one with a request timeout.
func NewPinger(url string, client *http.Client, clock clockwork.Clock) *Pinger {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Pinger{
		url:    url,
		client: client,
		policy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   2 * time.Second,
			MaxBackoff:       10 * time.Second,
			RateLimitBackoff: 30 * time.Second,
			Clock:            clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Self-ping failed, retrying", "url", url, "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Ping requests the target once, retrying transient failures.
func (p *Pinger) Ping(ctx context.Context) error {
	return retry.DoVoid(ctx, p.policy, classify, p.get)
}

// Run is the scheduler task body: it pings and logs the outcome.
func (p *Pinger) Run(ctx context.Context) {
	if err := p.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "Self-ping failed", "url", p.url, "error", err)
		return
	}
	slog.DebugContext(ctx, "Self-ping ok", "url", p.url)
}

func (p *Pinger) get(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		// Network failure.
		return retry.Retry
	}
	switch {
	case statusErr.Code == http.StatusTooManyRequests:
		return retry.After
	case statusErr.Code >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}
