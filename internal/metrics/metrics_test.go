package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelayMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)
	require.NotNil(t, m)

	assert.Panics(t, func() { NewRelayMetrics(reg) }, "duplicate registration must panic")
}

func TestRelayMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.ActiveConnections.Inc()
	m.ActiveConnections.Inc()
	m.ActiveConnections.Dec()
	m.EnvelopesDropped.WithLabelValues("decode").Inc()
	m.LivenessEvictions.WithLabelValues("idle").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnvelopesDropped.WithLabelValues("decode")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LivenessEvictions.WithLabelValues("idle")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewSchedulerMetrics(reg)
	m.Runs.WithLabelValues("time_broadcast").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `chatrelay_scheduler_task_runs_total{task="time_broadcast"} 1`)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collector should be registered")
}

func TestHTTPMetrics_SkipsObservabilityRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "OK") })
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/", "/health/live"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
}
