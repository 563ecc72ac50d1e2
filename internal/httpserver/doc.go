// Package httpserver exposes the relay over HTTP with Echo.
//
// GET / answers a plain 200 OK for keep-alive probes and upgrades WebSocket requests to a
// chat connection; /ws always upgrades. Operational endpoints live under /health, /version
// and /metrics. Upgrades pass through origin checks and connection admission limits.
package httpserver
