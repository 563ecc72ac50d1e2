package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a websocket.Upgrader CheckOrigin function. An empty allow-list
// accepts every origin. Requests without an Origin header (non-browser clients) are
// always accepted.
func NewCheckOrigin(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if o := normalizeOrigin(a); o != "" {
			origins[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		if len(origins) == 0 {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := origins[normalizeOrigin(origin)]; ok {
			return true
		}

		slog.WarnContext(r.Context(), "WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

// normalizeOrigin reduces a URL to its lower-cased scheme://host[:port].
func normalizeOrigin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
