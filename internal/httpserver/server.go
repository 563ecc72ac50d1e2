package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/metrics"
	"github.com/pscheid92/chatrelay/internal/platform/config"
)

// chatRelay is the connection lifecycle the WebSocket handler drives.
type chatRelay interface {
	Open(ctx context.Context, peer domain.Peer) (domain.ConnectionID, error)
	HandleMessage(ctx context.Context, id domain.ConnectionID, raw []byte)
	Pong(id domain.ConnectionID)
	Disconnect(ctx context.Context, id domain.ConnectionID, mode domain.CloseMode, reason string) bool
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	relay        chatRelay
	upgrader     websocket.Upgrader
	limits       *ConnectionLimits
	healthChecks []HealthCheck

	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
}

// NewServer builds the Echo server. promRegistry and httpMetrics may be nil, in which case
// /metrics is not served and requests are not measured.
func NewServer(cfg *config.Config, relay chatRelay, clock clockwork.Clock, promRegistry *prometheus.Registry, httpMetrics *metrics.HTTPMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		clock:  clock,
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.Origins()),
		},
		limits:       NewConnectionLimits(clock, int64(cfg.MaxConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		healthChecks: healthChecks,
		registry:     promRegistry,
		httpMetrics:  httpMetrics,
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Limits returns the admission limiter.
func (s *Server) Limits() *ConnectionLimits {
	return s.limits
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked WebSocket connections are not affected;
// the relay closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
