package httpserver

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestGlobalLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalLimiter(2)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(2), limiter.Current())

	limiter.Release()
	assert.True(t, limiter.Acquire())
}

func TestGlobalLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalLimiter(100)
	var granted atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for n := 0; n < 200; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.Acquire() {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), granted.Load())
	assert.Equal(t, int64(100), limiter.Current())
}

func TestIPLimiter(t *testing.T) {
	limiter := NewIPLimiter(2)

	assert.True(t, limiter.Acquire("10.0.0.1"))
	assert.True(t, limiter.Acquire("10.0.0.1"))
	assert.False(t, limiter.Acquire("10.0.0.1"))
	assert.True(t, limiter.Acquire("10.0.0.2"))

	limiter.Release("10.0.0.1")
	limiter.Release("10.0.0.1")
	limiter.Release("10.0.0.1")
	assert.Zero(t, limiter.Count("10.0.0.1"))
	assert.Equal(t, 1, limiter.Count("10.0.0.2"))
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(clock, 1, 2)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "buckets are per IP")

	clock.Advance(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiter_DropsIdleBuckets(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(clock, 1, 1)

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	assert.Equal(t, 2, limiter.Tracked())

	clock.Advance(rateLimiterIdleTTL + time.Minute)
	limiter.Allow("10.0.0.3")

	assert.Equal(t, 1, limiter.Tracked())
}

func TestConnectionLimits_Reasons(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	t.Run("per ip", func(t *testing.T) {
		limits := NewConnectionLimits(clock, 10, 1, 100, 100)
		_, ok := limits.Acquire("a")
		assert.True(t, ok)
		reason, ok := limits.Acquire("a")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonPerIP, reason)
		assert.Equal(t, int64(1), limits.Global().Current(), "global slot rolled back")
	})

	t.Run("global", func(t *testing.T) {
		limits := NewConnectionLimits(clock, 1, 10, 100, 100)
		limits.Acquire("a")
		reason, ok := limits.Acquire("b")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonGlobal, reason)
	})

	t.Run("rate", func(t *testing.T) {
		limits := NewConnectionLimits(clock, 10, 10, 1, 1)
		_, ok := limits.Acquire("a")
		assert.True(t, ok)
		limits.Release("a")
		reason, ok := limits.Acquire("a")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonRate, reason)
	})
}
