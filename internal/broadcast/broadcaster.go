package broadcast

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/metrics"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
	"github.com/pscheid92/chatrelay/internal/protocol"
)

// connectionSource is the part of the registry the engine iterates.
type connectionSource interface {
	ForEachOpen(fn func(domain.Connection))
}

// Failure records one recipient that did not accept a broadcast.
type Failure struct {
	ID  domain.ConnectionID
	Err error
}

// Result summarises one fan-out.
type Result struct {
	Recipients int
	Delivered  int
	Failed     []Failure
}

// Engine delivers envelopes to every open connection.
type Engine struct {
	connections connectionSource
	clock       clockwork.Clock
	metrics     *metrics.RelayMetrics
}

// NewEngine creates an engine over the given connection source. relayMetrics may be nil.
func NewEngine(connections connectionSource, clock clockwork.Clock, relayMetrics *metrics.RelayMetrics) *Engine {
	return &Engine{connections: connections, clock: clock, metrics: relayMetrics}
}

// Broadcast encodes env once and enqueues it on every open connection.
// Per-recipient failures are logged and returned in the result, never raised.
func (e *Engine) Broadcast(ctx context.Context, env domain.Envelope) Result {
	start := e.clock.Now()

	data, err := protocol.Encode(env)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode broadcast envelope", "kind", env.Type, "error", err)
		return Result{}
	}

	var res Result
	e.connections.ForEachOpen(func(conn domain.Connection) {
		res.Recipients++
		if err := conn.Peer.Send(data); err != nil {
			res.Failed = append(res.Failed, Failure{ID: conn.ID, Err: err})
			slog.WarnContext(ctx, "Broadcast delivery failed", "conn_id", conn.ID.String(), "kind", env.Type, "error", err)
			return
		}
		res.Delivered++
	})

	if e.metrics != nil {
		e.metrics.Broadcasts.WithLabelValues(string(env.Type)).Inc()
		e.metrics.DeliveryFailures.Add(float64(len(res.Failed)))
		e.metrics.BroadcastDuration.Observe(e.clock.Since(start).Seconds())
	}

	slog.DebugContext(ctx, "Broadcast sent", "kind", env.Type, "recipients", res.Recipients, "delivered", res.Delivered)
	return res
}

// Unicast encodes env and enqueues it on a single peer.
func (e *Engine) Unicast(ctx context.Context, peer domain.Peer, env domain.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return apperrors.InternalError("encode unicast envelope", err)
	}
	if err := peer.Send(data); err != nil {
		if e.metrics != nil {
			e.metrics.DeliveryFailures.Inc()
		}
		return apperrors.TransportError("unicast "+string(env.Type), err)
	}
	slog.DebugContext(ctx, "Unicast sent", "kind", env.Type, "remote_addr", peer.RemoteAddr())
	return nil
}
