package registry

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/protocol"
)

func (r *Registry) run() {
	defer close(r.done)

	for cmd := range r.cmdCh {
		if stop := r.dispatch(cmd); stop {
			return
		}
	}
}

// dispatch handles one command. A panic while handling it is recovered so the
// actor keeps serving the remaining connections.
func (r *Registry) dispatch(cmd registryCmd) (stop bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec, "command_type", fmt.Sprintf("%T", cmd))
			if r.metrics != nil {
				r.metrics.RegistryPanics.Inc()
			}
		}
	}()

	switch c := cmd.(type) {
	case registerCmd:
		c.replyChannel <- r.handleRegister(c.peer)
	case unregisterCmd:
		c.replyChannel <- r.handleUnregister(c.id)
	case renameCmd:
		c.replyChannel <- r.handleRename(c.id, c.name)
	case touchCmd:
		c.replyChannel <- r.handleTouch(c.id)
	case getCmd:
		c.replyChannel <- r.find(c.id)
	case markAliveCmd:
		if e, ok := r.connections[c.id]; ok {
			e.alive = true
		}
	case resetAliveCmd:
		res := r.find(c.id)
		if e, ok := r.connections[c.id]; ok {
			e.alive = false
		}
		c.replyChannel <- res
	case snapshotCmd:
		c.replyChannel <- r.openConnections()
	case stopCmd:
		c.replyChannel <- r.handleStop()
		return true
	default:
		slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
	return false
}

func (r *Registry) handleRegister(peer domain.Peer) domain.ConnectionID {
	now := r.clock.Now()
	e := &entry{
		id:             uuid.New(),
		peer:           peer,
		displayName:    domain.DefaultDisplayName,
		connectedAt:    now,
		lastActivityAt: now,
		alive:          true,
		state:          domain.StateOpen,
	}
	r.connections[e.id] = e

	if r.metrics != nil {
		r.metrics.ConnectionsTotal.Inc()
		r.metrics.ActiveConnections.Set(float64(len(r.connections)))
	}

	slog.Debug("Client registered", "conn_id", e.id.String(), "total_clients", len(r.connections))
	return e.id
}

func (r *Registry) handleUnregister(id domain.ConnectionID) lookupResult {
	e, ok := r.connections[id]
	if !ok {
		return lookupResult{}
	}

	delete(r.connections, id)
	e.state = domain.StateClosed

	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(float64(len(r.connections)))
	}

	slog.Debug("Client unregistered", "conn_id", id.String(), "remaining_clients", len(r.connections))
	return lookupResult{connection: e.view(), found: true}
}

func (r *Registry) handleRename(id domain.ConnectionID, proposed string) lookupResult {
	e, ok := r.connections[id]
	if !ok {
		return lookupResult{}
	}

	name := protocol.TruncateRunes(proposed, domain.MaxNameLength)
	if name == "" {
		name = domain.DefaultDisplayName
	}
	e.displayName = name
	return lookupResult{connection: e.view(), found: true}
}

func (r *Registry) handleTouch(id domain.ConnectionID) lookupResult {
	e, ok := r.connections[id]
	if !ok {
		return lookupResult{}
	}
	e.lastActivityAt = r.clock.Now()
	return lookupResult{connection: e.view(), found: true}
}

func (r *Registry) find(id domain.ConnectionID) lookupResult {
	e, ok := r.connections[id]
	if !ok {
		return lookupResult{}
	}
	return lookupResult{connection: e.view(), found: true}
}

func (r *Registry) openConnections() []domain.Connection {
	conns := make([]domain.Connection, 0, len(r.connections))
	for _, e := range r.connections {
		if e.state == domain.StateOpen {
			conns = append(conns, e.view())
		}
	}
	return conns
}

func (r *Registry) handleStop() []domain.Connection {
	conns := r.openConnections()
	for id, e := range r.connections {
		e.state = domain.StateClosed
		delete(r.connections, id)
	}

	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(0)
	}

	slog.Info("Registry stopped", "open_connections", len(conns))
	return conns
}
