package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetrics holds metrics for periodic task execution.
type SchedulerMetrics struct {
	Runs     *prometheus.CounterVec
	Panics   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewSchedulerMetrics creates and registers scheduler metrics on the given registry.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Total number of periodic task runs, by task.",
		}, []string{"task"}),
		Panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_panics_total",
			Help:      "Total number of recovered periodic task panics, by task.",
		}, []string{"task"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Duration of periodic task runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
	}

	reg.MustRegister(m.Runs, m.Panics, m.Duration)
	return m
}
