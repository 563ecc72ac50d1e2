package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionID identifies a connection for its whole lifetime. Display names are not unique.
type ConnectionID = uuid.UUID

type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CloseMode selects how a connection's transport is torn down.
type CloseMode int

const (
	// CloseGraceful sends a normal-closure frame with a reason before closing.
	CloseGraceful CloseMode = iota
	// CloseAbort drops the transport immediately.
	CloseAbort
)

func (m CloseMode) String() string {
	if m == CloseGraceful {
		return "graceful"
	}
	return "abort"
}

// Peer is the outbound half of a client transport.
//
// Send must never block: it either queues data or fails with ErrSendQueueFull / ErrPeerClosed.
// Close and Terminate are idempotent and safe to call from any goroutine.
type Peer interface {
	Send(data []byte) error
	Ping() error
	Close(reason string)
	Terminate()
	RemoteAddr() string
}

// Connection is a point-in-time copy of a registry entry.
type Connection struct {
	ID             ConnectionID
	Peer           Peer
	DisplayName    string
	ConnectedAt    time.Time
	LastActivityAt time.Time
	Alive          bool
	State          ConnectionState
}
