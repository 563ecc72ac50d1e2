package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	commandBuffer  = 256
)

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type lookupResult struct {
	connection domain.Connection
	found      bool
}

type registerCmd struct {
	baseRegistryCmd
	peer         domain.Peer
	replyChannel chan domain.ConnectionID
}

type unregisterCmd struct {
	baseRegistryCmd
	id           domain.ConnectionID
	replyChannel chan lookupResult
}

type renameCmd struct {
	baseRegistryCmd
	id           domain.ConnectionID
	name         string
	replyChannel chan lookupResult
}

type touchCmd struct {
	baseRegistryCmd
	id           domain.ConnectionID
	replyChannel chan lookupResult
}

type getCmd struct {
	baseRegistryCmd
	id           domain.ConnectionID
	replyChannel chan lookupResult
}

type markAliveCmd struct {
	baseRegistryCmd
	id domain.ConnectionID
}

type resetAliveCmd struct {
	baseRegistryCmd
	id           domain.ConnectionID
	replyChannel chan lookupResult
}

type snapshotCmd struct {
	baseRegistryCmd
	replyChannel chan []domain.Connection
}

type stopCmd struct {
	baseRegistryCmd
	replyChannel chan []domain.Connection
}

type entry struct {
	id             domain.ConnectionID
	peer           domain.Peer
	displayName    string
	connectedAt    time.Time
	lastActivityAt time.Time
	alive          bool
	state          domain.ConnectionState
}

func (e *entry) view() domain.Connection {
	return domain.Connection{
		ID:             e.id,
		Peer:           e.peer,
		DisplayName:    e.displayName,
		ConnectedAt:    e.connectedAt,
		LastActivityAt: e.lastActivityAt,
		Alive:          e.alive,
		State:          e.state,
	}
}

// Registry owns every open connection and its per-connection state.
type Registry struct {
	cmdCh       chan registryCmd
	clock       clockwork.Clock
	metrics     *metrics.RelayMetrics
	connections map[domain.ConnectionID]*entry
	done        chan struct{}
}

// New creates a registry and starts its actor goroutine. relayMetrics may be nil.
func New(clock clockwork.Clock, relayMetrics *metrics.RelayMetrics) *Registry {
	r := &Registry{
		cmdCh:       make(chan registryCmd, commandBuffer),
		clock:       clock,
		metrics:     relayMetrics,
		connections: make(map[domain.ConnectionID]*entry),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Register adds an open connection named "Guest" with its activity timestamp set to now.
// It fails only after Stop.
func (r *Registry) Register(peer domain.Peer) (domain.ConnectionID, error) {
	reply := make(chan domain.ConnectionID, 1)
	if !r.submit(registerCmd{peer: peer, replyChannel: reply}) {
		return uuid.Nil, domain.ErrRegistryStopped
	}
	id, ok := await(r, reply)
	if !ok {
		return uuid.Nil, domain.ErrRegistryStopped
	}
	return id, nil
}

// Unregister removes a connection and returns its final state.
// Removing an absent connection is a no-op that reports false.
func (r *Registry) Unregister(id domain.ConnectionID) (domain.Connection, bool) {
	res, err := r.lookup(unregisterCmd{id: id, replyChannel: make(chan lookupResult, 1)})
	if err != nil {
		return domain.Connection{}, false
	}
	return res.connection, res.found
}

// Rename sets the display name, truncated to 16 characters. Empty names fall back to "Guest".
func (r *Registry) Rename(id domain.ConnectionID, proposed string) (string, error) {
	res, err := r.lookup(renameCmd{id: id, name: proposed, replyChannel: make(chan lookupResult, 1)})
	if err != nil {
		return "", err
	}
	return res.connection.DisplayName, nil
}

// Touch records application activity and returns the updated connection.
func (r *Registry) Touch(id domain.ConnectionID) (domain.Connection, error) {
	res, err := r.lookup(touchCmd{id: id, replyChannel: make(chan lookupResult, 1)})
	if err != nil {
		return domain.Connection{}, err
	}
	return res.connection, nil
}

// Get returns a copy of the connection.
func (r *Registry) Get(id domain.ConnectionID) (domain.Connection, error) {
	res, err := r.lookup(getCmd{id: id, replyChannel: make(chan lookupResult, 1)})
	if err != nil {
		return domain.Connection{}, err
	}
	return res.connection, nil
}

// MarkAlive records a transport pong. It does not count as activity.
func (r *Registry) MarkAlive(id domain.ConnectionID) {
	r.submit(markAliveCmd{id: id})
}

// ResetAlive clears the alive flag and returns the connection as it was before the reset.
func (r *Registry) ResetAlive(id domain.ConnectionID) (domain.Connection, error) {
	res, err := r.lookup(resetAliveCmd{id: id, replyChannel: make(chan lookupResult, 1)})
	if err != nil {
		return domain.Connection{}, err
	}
	return res.connection, nil
}

// Snapshot returns copies of every open connection in unspecified order.
func (r *Registry) Snapshot() []domain.Connection {
	reply := make(chan []domain.Connection, 1)
	if !r.submit(snapshotCmd{replyChannel: reply}) {
		return nil
	}
	conns, _ := await(r, reply)
	return conns
}

// ForEachOpen calls fn once per open connection, iterating over a snapshot.
// Connections that close during iteration may still be visited, but never twice.
func (r *Registry) ForEachOpen(fn func(domain.Connection)) {
	for _, conn := range r.Snapshot() {
		fn(conn)
	}
}

// Count returns the number of open connections.
func (r *Registry) Count() int {
	return len(r.Snapshot())
}

// Running reports whether the actor is still serving commands.
func (r *Registry) Running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Stop empties the registry, stops the actor and returns the connections that were open.
// Further calls return nil.
func (r *Registry) Stop() []domain.Connection {
	reply := make(chan []domain.Connection, 1)
	if !r.submit(stopCmd{replyChannel: reply}) {
		return nil
	}
	conns, _ := await(r, reply)
	return conns
}

func (r *Registry) submit(cmd registryCmd) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) lookup(cmd registryCmd) (lookupResult, error) {
	var reply chan lookupResult
	switch c := cmd.(type) {
	case unregisterCmd:
		reply = c.replyChannel
	case renameCmd:
		reply = c.replyChannel
	case touchCmd:
		reply = c.replyChannel
	case getCmd:
		reply = c.replyChannel
	case resetAliveCmd:
		reply = c.replyChannel
	default:
		return lookupResult{}, fmt.Errorf("unsupported lookup command %T", cmd)
	}

	if !r.submit(cmd) {
		return lookupResult{}, domain.ErrRegistryStopped
	}
	res, ok := await(r, reply)
	if !ok {
		return lookupResult{}, domain.ErrRegistryStopped
	}
	if !res.found {
		return res, domain.ErrConnectionNotFound
	}
	return res, nil
}

func await[T any](r *Registry, reply chan T) (T, bool) {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case v := <-reply:
		return v, true
	case <-r.done:
		// The actor may have answered just before stopping.
		select {
		case v := <-reply:
			return v, true
		default:
		}
	case <-timer.Chan():
		slog.Warn("Registry command timed out", "timeout", commandTimeout)
	}

	var zero T
	return zero, false
}
