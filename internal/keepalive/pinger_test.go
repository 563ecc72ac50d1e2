package keepalive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/platform/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusSequence(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(codes) {
			n = len(codes) - 1
		}
		w.WriteHeader(codes[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// advanceWhileWaiting drives the fake clock until done yields.
func advanceWhileWaiting(t *testing.T, clock *clockwork.FakeClock, done <-chan error) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("ping did not finish")
			return nil
		case <-time.After(5 * time.Millisecond):
			clock.Advance(time.Minute)
		}
	}
}

func TestPing_Success(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusOK)
	p := NewPinger(srv.URL, srv.Client(), clockwork.NewFakeClock())

	require.NoError(t, p.Ping(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPing_RetriesServerErrors(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusOK)
	clock := clockwork.NewFakeClock()
	p := NewPinger(srv.URL, srv.Client(), clock)

	done := make(chan error, 1)
	go func() { done <- p.Ping(context.Background()) }()

	require.NoError(t, advanceWhileWaiting(t, clock, done))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPing_ClientErrorIsPermanent(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusNotFound)
	p := NewPinger(srv.URL, srv.Client(), clockwork.NewFakeClock())

	err := p.Ping(context.Background())

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPing_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := statusSequence(t, http.StatusInternalServerError)
	clock := clockwork.NewFakeClock()
	p := NewPinger(srv.URL, srv.Client(), clock)

	done := make(chan error, 1)
	go func() { done <- p.Ping(context.Background()) }()

	err := advanceWhileWaiting(t, clock, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Action
	}{
		{"network", errors.New("connection refused"), retry.Retry},
		{"server error", &StatusError{Code: 503}, retry.Retry},
		{"throttled", &StatusError{Code: 429}, retry.After},
		{"not found", &StatusError{Code: 404}, retry.Stop},
		{"cancelled", context.Canceled, retry.Stop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
