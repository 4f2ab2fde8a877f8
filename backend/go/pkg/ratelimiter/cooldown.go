package ratelimiter

import (
	"sync"
	"time"
)

// Cooldown lets one event per key through and suppresses repeats until the
// cooldown period has elapsed.
type Cooldown struct {
	period time.Duration
	now    Clock
	mu     sync.Mutex
	last   map[string]time.Time
}

// NewCooldown creates a cooldown gate.
func NewCooldown(period time.Duration) *Cooldown {
	return NewCooldownWithClock(period, time.Now)
}

// NewCooldownWithClock creates a cooldown gate reading time from now.
func NewCooldownWithClock(period time.Duration, now Clock) *Cooldown {
	return &Cooldown{period: period, now: now, last: make(map[string]time.Time)}
}

// Allow reports whether key may fire now and, if so, starts its cooldown.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.period {
		return false
	}
	c.last[key] = now
	return true
}

// Reset forgets key so that its next event fires immediately.
func (c *Cooldown) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, key)
}
