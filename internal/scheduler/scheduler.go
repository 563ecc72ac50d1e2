// Package scheduler runs the relay's recurring ticks.
//
// Every task gets its own ticker goroutine, so a slow task never delays the others.
// Each run carries a fresh correlation ID and a panic in one run is recovered and counted.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/metrics"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
)

// Task is one named recurring job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type Scheduler struct {
	clock   clockwork.Clock
	metrics *metrics.SchedulerMetrics
	tasks   []Task
}

// New creates a scheduler for tasks. Tasks with a non-positive interval are disabled.
// schedulerMetrics may be nil.
func New(clock clockwork.Clock, schedulerMetrics *metrics.SchedulerMetrics, tasks ...Task) *Scheduler {
	return &Scheduler{clock: clock, metrics: schedulerMetrics, tasks: tasks}
}

// Run starts every enabled task and blocks until ctx is cancelled and all tasks have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		if task.Interval <= 0 || task.Run == nil {
			slog.InfoContext(ctx, "Scheduler: task disabled", "task", task.Name)
			continue
		}
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.loop(ctx, task)
		}(task)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	ticker := s.clock.NewTicker(task.Interval)
	defer ticker.Stop()

	slog.DebugContext(ctx, "Scheduler: task started", "task", task.Name, "interval", task.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.execute(ctx, task)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	tickCtx := correlation.WithID(ctx, correlation.NewID())
	start := s.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(tickCtx, "Scheduler: task panic recovered", "task", task.Name, "panic", rec)
			if s.metrics != nil {
				s.metrics.Panics.WithLabelValues(task.Name).Inc()
			}
		}
		if s.metrics != nil {
			s.metrics.Runs.WithLabelValues(task.Name).Inc()
			s.metrics.Duration.WithLabelValues(task.Name).Observe(s.clock.Since(start).Seconds())
		}
	}()

	task.Run(tickCtx)
}
