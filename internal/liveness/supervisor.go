// Package liveness evicts connections that are presumed dead.
//
// A process runs exactly one policy. PolicyIdle closes connections whose last application
// activity is older than the idle timeout. PolicyPing sends transport pings and terminates
// connections that did not answer the previous one.
package liveness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/metrics"
)

type Policy string

const (
	PolicyIdle Policy = "idle"
	PolicyPing Policy = "ping"
)

// IdleReason is the close reason sent to connections evicted for inactivity.
const IdleReason = "Inactive for too long"

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyIdle, PolicyPing:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown liveness policy %q (want %q or %q)", s, PolicyIdle, PolicyPing)
	}
}

// Connections is the registry view the supervisor needs.
type Connections interface {
	Snapshot() []domain.Connection
	ResetAlive(id domain.ConnectionID) (domain.Connection, error)
}

// Evictor closes a connection and emits its departure notice.
type Evictor interface {
	Evict(ctx context.Context, id domain.ConnectionID, mode domain.CloseMode, reason string)
}

type Supervisor struct {
	connections Connections
	evictor     Evictor
	clock       clockwork.Clock
	policy      Policy
	idleTimeout time.Duration
	metrics     *metrics.RelayMetrics
}

// NewSupervisor creates a supervisor for one policy. idleTimeout is ignored under PolicyPing.
// relayMetrics may be nil.
func NewSupervisor(connections Connections, evictor Evictor, clock clockwork.Clock, policy Policy, idleTimeout time.Duration, relayMetrics *metrics.RelayMetrics) *Supervisor {
	return &Supervisor{
		connections: connections,
		evictor:     evictor,
		clock:       clock,
		policy:      policy,
		idleTimeout: idleTimeout,
		metrics:     relayMetrics,
	}
}

func (s *Supervisor) Policy() Policy {
	return s.policy
}

// Sweep runs one pass of the configured policy and returns the number of evicted connections.
func (s *Supervisor) Sweep(ctx context.Context) int {
	var evicted int
	for _, conn := range s.connections.Snapshot() {
		if ctx.Err() != nil {
			break
		}

		var ok bool
		switch s.policy {
		case PolicyPing:
			ok = s.probe(ctx, conn)
		default:
			ok = s.checkIdle(ctx, conn)
		}
		if !ok {
			evicted++
		}
	}

	if evicted > 0 {
		slog.InfoContext(ctx, "Liveness sweep evicted connections", "policy", s.policy, "evicted", evicted)
	}
	return evicted
}

func (s *Supervisor) checkIdle(ctx context.Context, conn domain.Connection) bool {
	idle := s.clock.Since(conn.LastActivityAt)
	if idle <= s.idleTimeout {
		return true
	}

	slog.InfoContext(ctx, "Evicting idle connection", "conn_id", conn.ID.String(), "name", conn.DisplayName, "idle", idle)
	s.evict(ctx, conn.ID, domain.CloseGraceful, IdleReason)
	return false
}

func (s *Supervisor) probe(ctx context.Context, conn domain.Connection) bool {
	before, err := s.connections.ResetAlive(conn.ID)
	if err != nil {
		// Closed since the snapshot was taken.
		return true
	}

	if !before.Alive {
		slog.InfoContext(ctx, "Terminating unresponsive connection", "conn_id", conn.ID.String(), "name", before.DisplayName)
		s.evict(ctx, conn.ID, domain.CloseAbort, "")
		return false
	}

	if err := before.Peer.Ping(); err != nil {
		slog.InfoContext(ctx, "Ping failed, terminating connection", "conn_id", conn.ID.String(), "error", err)
		s.evict(ctx, conn.ID, domain.CloseAbort, "")
		return false
	}
	return true
}

func (s *Supervisor) evict(ctx context.Context, id domain.ConnectionID, mode domain.CloseMode, reason string) {
	s.evictor.Evict(ctx, id, mode, reason)
	if s.metrics != nil {
		s.metrics.LivenessEvictions.WithLabelValues(string(s.policy)).Inc()
	}
}
