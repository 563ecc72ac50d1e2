// Package relay implements the chat semantics on top of the registry and the broadcast engine.
//
// It drives each connection through its lifecycle: the time snapshot on open, join, message,
// system and ping handling while open, and exactly one departure notice on close, whatever
// triggered it (peer close, transport error, liveness eviction, slow consumer).
package relay
