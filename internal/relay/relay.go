package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/broadcast"
	"github.com/pscheid92/chatrelay/internal/calendar"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/metrics"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
	"github.com/pscheid92/chatrelay/internal/protocol"
	"github.com/pscheid92/chatrelay/internal/registry"
)

const (
	ShutdownReason     = "Server shutting down"
	SlowConsumerReason = "Too slow to keep up"
)

type Options struct {
	// AllowClientSystem lets any client rebroadcast system notices.
	AllowClientSystem bool
}

type Relay struct {
	registry *registry.Registry
	engine   *broadcast.Engine
	clock    clockwork.Clock
	opts     Options
	metrics  *metrics.RelayMetrics
}

// New creates a relay. relayMetrics may be nil.
func New(reg *registry.Registry, engine *broadcast.Engine, clock clockwork.Clock, opts Options, relayMetrics *metrics.RelayMetrics) *Relay {
	return &Relay{
		registry: reg,
		engine:   engine,
		clock:    clock,
		opts:     opts,
		metrics:  relayMetrics,
	}
}

// Open greets a freshly accepted peer with the current time and registers it.
// The time snapshot is queued before registration so it is always the first frame the peer sees.
func (r *Relay) Open(ctx context.Context, peer domain.Peer) (domain.ConnectionID, error) {
	if err := r.engine.Unicast(ctx, peer, domain.TimeEnvelope(calendar.Now(r.clock))); err != nil {
		return domain.ConnectionID{}, fmt.Errorf("send initial time: %w", err)
	}

	id, err := r.registry.Register(peer)
	if err != nil {
		return domain.ConnectionID{}, fmt.Errorf("register connection: %w", err)
	}

	slog.InfoContext(ctx, "Client connected", "conn_id", id.String(), "remote_addr", peer.RemoteAddr())
	return id, nil
}

// HandleMessage processes one inbound frame. Malformed, invalid and unknown envelopes are dropped.
func (r *Relay) HandleMessage(ctx context.Context, id domain.ConnectionID, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		r.drop(ctx, id, string(apperrors.TypeOf(err)), err)
		return
	}

	switch env.Type {
	case domain.KindPing:
		r.countReceived(env.Type)
		r.handlePing(ctx, id, env)
		return
	case domain.KindJoin, domain.KindMessage:
	case domain.KindSystem:
		if !r.opts.AllowClientSystem {
			r.drop(ctx, id, "system_rejected", errors.New("client system notices are disabled"))
			return
		}
	default:
		slog.DebugContext(ctx, "Ignoring envelope of unknown kind", "conn_id", id.String(), "kind", env.Type)
		return
	}

	conn, err := r.registry.Touch(id)
	if err != nil {
		slog.DebugContext(ctx, "Envelope from closed connection ignored", "conn_id", id.String(), "error", err)
		return
	}
	r.countReceived(env.Type)

	switch env.Type {
	case domain.KindJoin:
		name, err := r.registry.Rename(id, env.Name)
		if err != nil {
			return
		}
		slog.InfoContext(ctx, "Client joined", "conn_id", id.String(), "name", name)
		r.fanOut(ctx, domain.SystemEnvelope(name+" joined the chat"))
	case domain.KindMessage:
		r.fanOut(ctx, domain.ChatEnvelope(conn.DisplayName, env.Text))
	case domain.KindSystem:
		r.fanOut(ctx, domain.SystemEnvelope(env.Text))
	}
}

// Pong records a transport pong from the connection.
func (r *Relay) Pong(id domain.ConnectionID) {
	r.registry.MarkAlive(id)
}

// Disconnect closes the connection and announces its departure. Only the first call for a
// connection has any effect; it reports whether this call was that one.
func (r *Relay) Disconnect(ctx context.Context, id domain.ConnectionID, mode domain.CloseMode, reason string) bool {
	return r.depart(ctx, []departure{{id: id, mode: mode, reason: reason}}) > 0
}

// Evict satisfies liveness.Evictor.
func (r *Relay) Evict(ctx context.Context, id domain.ConnectionID, mode domain.CloseMode, reason string) {
	r.Disconnect(ctx, id, mode, reason)
}

// BroadcastTime sends the current time snapshot to every open connection.
func (r *Relay) BroadcastTime(ctx context.Context) {
	r.fanOut(ctx, domain.TimeEnvelope(calendar.Now(r.clock)))
}

// Count returns the number of open connections.
func (r *Relay) Count() int {
	return r.registry.Count()
}

// Shutdown stops the registry and closes every remaining connection with a normal closure.
// No departure notices are sent.
func (r *Relay) Shutdown(ctx context.Context) {
	conns := r.registry.Stop()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(peer domain.Peer) {
			defer wg.Done()
			peer.Close(ShutdownReason)
		}(conn.Peer)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "All connections closed", "count", len(conns))
	case <-ctx.Done():
		slog.WarnContext(ctx, "Shutdown deadline reached before all connections closed", "count", len(conns))
	}
}

func (r *Relay) handlePing(ctx context.Context, id domain.ConnectionID, env domain.Envelope) {
	conn, err := r.registry.Get(id)
	if err != nil {
		return
	}

	pong := domain.PongEnvelope(r.clock.Now().UnixMilli(), env.ClientTime)
	if err := r.engine.Unicast(ctx, conn.Peer, pong); err != nil {
		r.depart(ctx, []departure{departureFor(id, err)})
	}
}

type departure struct {
	id     domain.ConnectionID
	mode   domain.CloseMode
	reason string
}

func departureFor(id domain.ConnectionID, err error) departure {
	if errors.Is(err, domain.ErrSendQueueFull) {
		return departure{id: id, mode: domain.CloseGraceful, reason: SlowConsumerReason}
	}
	return departure{id: id, mode: domain.CloseAbort}
}

// fanOut broadcasts env and evicts every recipient that could not accept it.
func (r *Relay) fanOut(ctx context.Context, env domain.Envelope) {
	res := r.engine.Broadcast(ctx, env)
	if len(res.Failed) > 0 {
		r.depart(ctx, r.departuresFor(res.Failed))
	}
}

// depart works through a queue of departures. Each departure notice may itself fail on
// further recipients, which are appended to the queue rather than handled recursively.
func (r *Relay) depart(ctx context.Context, queue []departure) int {
	var removed int
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		conn, ok := r.registry.Unregister(d.id)
		if !ok {
			continue
		}
		removed++

		if d.reason == SlowConsumerReason && r.metrics != nil {
			r.metrics.SlowConsumersEvicted.Inc()
		}

		if d.mode == domain.CloseGraceful {
			conn.Peer.Close(d.reason)
		} else {
			conn.Peer.Terminate()
		}
		slog.InfoContext(ctx, "Client disconnected", "conn_id", d.id.String(), "name", conn.DisplayName, "mode", d.mode, "reason", d.reason)

		res := r.engine.Broadcast(ctx, domain.SystemEnvelope(conn.DisplayName+" left the chat"))
		queue = append(queue, r.departuresFor(res.Failed)...)
	}
	return removed
}

func (r *Relay) departuresFor(failed []broadcast.Failure) []departure {
	out := make([]departure, 0, len(failed))
	for _, f := range failed {
		out = append(out, departureFor(f.ID, f.Err))
	}
	return out
}

func (r *Relay) drop(ctx context.Context, id domain.ConnectionID, reason string, err error) {
	slog.DebugContext(ctx, "Dropping inbound envelope", "conn_id", id.String(), "reason", reason, "error", err)
	if r.metrics != nil {
		r.metrics.EnvelopesDropped.WithLabelValues(reason).Inc()
	}
}

func (r *Relay) countReceived(kind domain.Kind) {
	if r.metrics != nil {
		r.metrics.EnvelopesReceived.WithLabelValues(string(kind)).Inc()
	}
}
