// Package registry tracks the set of open client connections using the actor pattern.
//
// A single goroutine owns the connection map and serves commands from a buffered channel, so
// register, unregister and iteration never race. Callers receive value copies; iteration runs on
// a snapshot outside the actor, so no lock or actor turn is held while sending to peers.
package registry
