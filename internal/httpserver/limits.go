package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterIdleTTL  = 10 * time.Minute
	rateLimiterSweepGap = 5 * time.Minute
)

// GlobalLimiter caps concurrent connections for the whole process.
type GlobalLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalLimiter(max int64) *GlobalLimiter {
	return &GlobalLimiter{max: max}
}

func (l *GlobalLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *GlobalLimiter) Release() {
	l.current.Add(-1)
}

func (l *GlobalLimiter) Current() int64 {
	return l.current.Load()
}

// IPLimiter caps concurrent connections per client IP.
type IPLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func NewIPLimiter(maxPer int) *IPLimiter {
	return &IPLimiter{ips: make(map[string]int), maxPer: maxPer}
}

func (l *IPLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *IPLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch n := l.ips[ip]; {
	case n > 1:
		l.ips[ip] = n - 1
	case n == 1:
		delete(l.ips, ip)
	}
}

func (l *IPLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

// RateLimiter throttles new connections per client IP with a token bucket.
// Buckets unused for rateLimiterIdleTTL are dropped lazily.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	limiters map[string]*rateEntry
	limit    rate.Limit
	burst    int
	sweepAt  time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(clock clockwork.Clock, perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		limiters: make(map[string]*rateEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		sweepAt:  clock.Now().Add(rateLimiterSweepGap),
	}
}

func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.sweepAt) {
		cutoff := now.Add(-rateLimiterIdleTTL)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.sweepAt = now.Add(rateLimiterSweepGap)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// LimitReason says which limit refused a connection.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits applies the rate, global and per-IP limits to WebSocket admissions.
type ConnectionLimits struct {
	global *GlobalLimiter
	perIP  *IPLimiter
	rate   *RateLimiter
}

func NewConnectionLimits(clock clockwork.Clock, globalMax int64, perIPMax int, perSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		global: NewGlobalLimiter(globalMax),
		perIP:  NewIPLimiter(perIPMax),
		rate:   NewRateLimiter(clock, perSecond, burst),
	}
}

// Acquire reserves a slot for ip. On success the caller must Release it.
func (l *ConnectionLimits) Acquire(ip string) (LimitReason, bool) {
	if !l.rate.Allow(ip) {
		return LimitReasonRate, false
	}
	if !l.global.Acquire() {
		return LimitReasonGlobal, false
	}
	if !l.perIP.Acquire(ip) {
		l.global.Release()
		return LimitReasonPerIP, false
	}
	return "", true
}

func (l *ConnectionLimits) Release(ip string) {
	l.perIP.Release(ip)
	l.global.Release()
}

func (l *ConnectionLimits) Global() *GlobalLimiter { return l.global }
func (l *ConnectionLimits) PerIP() *IPLimiter      { return l.perIP }
func (l *ConnectionLimits) Rate() *RateLimiter     { return l.rate }
