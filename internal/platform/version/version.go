// Package version exposes build information injected via ldflags and the process uptime.
package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var startedAt = time.Now()

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	StartedAt string `json:"started_at"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		StartedAt: startedAt.UTC().Format(time.RFC3339),
	}
}

// StartedAt returns when the process initialised this package.
func StartedAt() time.Time {
	return startedAt
}

// Uptime returns the time elapsed since StartedAt.
func Uptime() time.Duration {
	return time.Since(startedAt)
}
