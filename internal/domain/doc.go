// Package domain defines the core relay types and the contracts between components.
//
// Concept-oriented files (calendar.go, envelope.go, connection.go, errors.go) hold shared value
// types and the interfaces implemented by the transport. No implementation code - just contracts.
// Keeping them here prevents circular imports between registry, broadcast, liveness and relay.
package domain
