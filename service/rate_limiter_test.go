package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_AdmitsUpToQuota(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(5, time.Minute).WithClock(clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Admit("A"), "request %d should be admitted", i+1)
		clock.Advance(2 * time.Second)
	}
	assert.False(t, limiter.Admit("A"), "6th request within the window must be rejected")
}

func TestRateLimiter_RecoversAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(5, time.Minute).WithClock(clock.Now)

	// Five requests within ten seconds.
	for i := 0; i < 5; i++ {
		require.True(t, limiter.Admit("A"))
		clock.Advance(2 * time.Second)
	}
	require.False(t, limiter.Admit("A"))

	// 61s after the first request only that one has expired.
	clock.Advance(51 * time.Second)
	assert.True(t, limiter.Admit("A"))
	assert.False(t, limiter.Admit("A"))
}

func TestRateLimiter_RejectedAttemptsAreNotRecorded(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(2, time.Minute).WithClock(clock.Now)

	require.True(t, limiter.Admit("A"))
	require.True(t, limiter.Admit("A"))
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		require.False(t, limiter.Admit("A"))
	}

	// Only the two admitted requests count, so one minute after them both
	// slots are free again.
	clock.Advance(51 * time.Second)
	assert.True(t, limiter.Admit("A"))
	assert.True(t, limiter.Admit("A"))
}

func TestRateLimiter_TimestampAtWindowEdgeExpires(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(1, time.Minute).WithClock(clock.Now)

	require.True(t, limiter.Admit("A"))
	clock.Advance(time.Minute - time.Nanosecond)
	assert.False(t, limiter.Admit("A"))
	clock.Advance(time.Nanosecond)
	assert.True(t, limiter.Admit("A"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Admit("A"))
	assert.False(t, limiter.Admit("A"))
	assert.True(t, limiter.Admit("B"))
	assert.Equal(t, 2, limiter.Clients())
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(2, time.Minute).WithClock(clock.Now)

	assert.Zero(t, limiter.RetryAfter("A"))
	require.True(t, limiter.Admit("A"))
	clock.Advance(10 * time.Second)
	require.True(t, limiter.Admit("A"))
	clock.Advance(5 * time.Second)

	assert.Equal(t, 45*time.Second, limiter.RetryAfter("A"))
}

func TestRateLimiter_ConcurrentAdmissionsDoNotOverAdmit(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit("same-client") {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), admitted)
}
