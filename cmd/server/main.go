package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/broadcast"
	"github.com/pscheid92/chatrelay/internal/httpserver"
	"github.com/pscheid92/chatrelay/internal/keepalive"
	"github.com/pscheid92/chatrelay/internal/liveness"
	"github.com/pscheid92/chatrelay/internal/metrics"
	"github.com/pscheid92/chatrelay/internal/platform/config"
	"github.com/pscheid92/chatrelay/internal/platform/logging"
	"github.com/pscheid92/chatrelay/internal/platform/version"
	"github.com/pscheid92/chatrelay/internal/registry"
	"github.com/pscheid92/chatrelay/internal/relay"
	"github.com/pscheid92/chatrelay/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet.
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func buildTasks(cfg *config.Config, clock clockwork.Clock, rel *relay.Relay, supervisor *liveness.Supervisor) []scheduler.Task {
	tasks := []scheduler.Task{
		{Name: "time_broadcast", Interval: cfg.TimeBroadcastInterval, Run: rel.BroadcastTime},
		{Name: "liveness_sweep", Interval: cfg.LivenessInterval, Run: func(ctx context.Context) { supervisor.Sweep(ctx) }},
		{Name: "heartbeat", Interval: cfg.HeartbeatInterval, Run: scheduler.Heartbeat(rel, version.Uptime)},
	}
	if cfg.SelfPingURL != "" {
		pinger := keepalive.NewPinger(cfg.SelfPingURL, nil, clock)
		tasks = append(tasks, scheduler.Task{Name: "self_ping", Interval: cfg.SelfPingInterval, Run: pinger.Run})
	}
	return tasks
}

func runGracefulShutdown(srv *httpserver.Server, rel *relay.Relay, stopScheduler context.CancelFunc, schedulerDone <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("Shutdown signal received, cleaning up...", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopScheduler()
		<-schedulerDone

		rel.Shutdown(ctx)
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	policy, err := liveness.ParsePolicy(cfg.LivenessPolicy)
	if err != nil {
		slog.Error("Invalid liveness policy", "error", err)
		os.Exit(1)
	}

	slog.Info("Chat relay starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"liveness_policy", policy,
		"version", version.Version,
	)

	promRegistry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(promRegistry)
	schedulerMetrics := metrics.NewSchedulerMetrics(promRegistry)
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)

	reg := registry.New(clock, relayMetrics)
	engine := broadcast.NewEngine(reg, clock, relayMetrics)
	rel := relay.New(reg, engine, clock, relay.Options{AllowClientSystem: cfg.AllowClientSystem}, relayMetrics)
	supervisor := liveness.NewSupervisor(reg, rel, clock, policy, cfg.IdleTimeout, relayMetrics)

	healthChecks := []httpserver.HealthCheck{
		{Name: "registry", Check: func(context.Context) error {
			if !reg.Running() {
				return errors.New("connection registry is stopped")
			}
			return nil
		}},
	}
	srv := httpserver.NewServer(cfg, rel, clock, promRegistry, httpMetrics, healthChecks)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.New(clock, schedulerMetrics, buildTasks(cfg, clock, rel, supervisor)...).Run(schedCtx)
	}()

	done := runGracefulShutdown(srv, rel, stopScheduler, schedulerDone)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Chat relay stopped")
}
