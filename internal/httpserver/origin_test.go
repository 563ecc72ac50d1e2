package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://chat.example.com", "http://localhost:3000/", "not a url"}

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty allow-list accepts anything", nil, "https://evil.example.com", true},
		{"no origin header", allowed, "", true},
		{"listed origin", allowed, "https://chat.example.com", true},
		{"listed origin, different case", allowed, "HTTPS://Chat.Example.com", true},
		{"listed origin with trailing path", allowed, "http://localhost:3000", true},
		{"different host", allowed, "https://evil.example.com", false},
		{"different port", allowed, "https://chat.example.com:8443", false},
		{"different scheme", allowed, "http://chat.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewCheckOrigin(tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(r))
		})
	}
}
