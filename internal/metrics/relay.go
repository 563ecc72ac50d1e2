package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds metrics for connection membership, fan-out and liveness.
type RelayMetrics struct {
	ActiveConnections    prometheus.Gauge
	ConnectionsTotal     prometheus.Counter
	EnvelopesReceived    *prometheus.CounterVec
	EnvelopesDropped     *prometheus.CounterVec
	Broadcasts           *prometheus.CounterVec
	DeliveryFailures     prometheus.Counter
	SlowConsumersEvicted prometheus.Counter
	LivenessEvictions    *prometheus.CounterVec
	BroadcastDuration    prometheus.Histogram
	RegistryPanics       prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}),
		EnvelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "envelopes_received_total",
			Help:      "Total number of accepted inbound envelopes, by kind.",
		}, []string{"kind"}),
		EnvelopesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "envelopes_dropped_total",
			Help:      "Total number of silently dropped inbound envelopes, by reason.",
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcasts_total",
			Help:      "Total number of fan-out broadcasts, by envelope kind.",
		}, []string{"kind"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "delivery_failures_total",
			Help:      "Total number of per-recipient send failures.",
		}),
		SlowConsumersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "slow_consumers_evicted_total",
			Help:      "Total number of connections closed because their send queue was full.",
		}),
		LivenessEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "evictions_total",
			Help:      "Total number of connections evicted by the liveness supervisor, by policy.",
		}, []string{"policy"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent enqueueing one broadcast to all recipients.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		}),
		RegistryPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "panics_total",
			Help:      "Total registry actor panic recoveries.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections, m.ConnectionsTotal, m.EnvelopesReceived, m.EnvelopesDropped,
		m.Broadcasts, m.DeliveryFailures, m.SlowConsumersEvicted, m.LivenessEvictions,
		m.BroadcastDuration, m.RegistryPanics,
	)
	return m
}
