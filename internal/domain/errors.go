package domain

import "errors"

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrRegistryStopped    = errors.New("registry is stopped")
	ErrSendQueueFull      = errors.New("send queue full")
	ErrPeerClosed         = errors.New("peer is closed")
)
