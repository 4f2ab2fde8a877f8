package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucket(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(1, 2, clock.Now)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket should be empty after capacity requests")

	clock.Advance(time.Second)
	assert.True(t, tb.Allow(), "one token refilled after a second")
	assert.False(t, tb.Allow())

	clock.Advance(time.Hour)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "refill is capped at capacity")
}

func TestFixedWindowCounter(t *testing.T) {
	clock := newFakeClock()
	fw := newFixedWindowCounter(2, time.Minute, clock.Now)

	assert.True(t, fw.Allow())
	assert.True(t, fw.Allow())
	assert.False(t, fw.Allow())

	clock.Advance(time.Minute + time.Second)
	assert.True(t, fw.Allow())
}

func TestKeyedIsolatesClients(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyed(func() RateLimiter { return newFixedWindowCounter(1, time.Minute, clock.Now) }, time.Minute)
	k.now = clock.Now

	assert.True(t, k.Allow("10.0.0.1"))
	assert.False(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.2"))
	assert.Equal(t, 2, k.Len())

	clock.Advance(2 * time.Minute)
	assert.True(t, k.Allow("10.0.0.3"))
	assert.Equal(t, 1, k.Len(), "idle keys are swept")
}

func TestCooldown(t *testing.T) {
	clock := newFakeClock()
	c := NewCooldownWithClock(15*time.Minute, clock.Now)

	assert.True(t, c.Allow("health"))
	assert.False(t, c.Allow("health"))
	assert.True(t, c.Allow("error_rate"), "keys are independent")

	clock.Advance(14 * time.Minute)
	assert.False(t, c.Allow("health"))
	clock.Advance(time.Minute)
	assert.True(t, c.Allow("health"))

	c.Reset("error_rate")
	assert.True(t, c.Allow("error_rate"))
}
