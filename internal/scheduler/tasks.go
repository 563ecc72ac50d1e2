package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Counter reports the number of open connections.
type Counter interface {
	Count() int
}

// Heartbeat returns a task body that logs the connection count and process uptime.
func Heartbeat(connections Counter, uptime func() time.Duration) func(ctx context.Context) {
	return func(ctx context.Context) {
		slog.InfoContext(ctx, "Heartbeat",
			"connections", connections.Count(),
			"uptime", uptime().Round(time.Second).String(),
		)
	}
}
