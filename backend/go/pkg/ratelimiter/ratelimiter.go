package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter decides whether one more request may pass.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

// Keyed keeps one limiter per key (usually the client address) so that a noisy
// client cannot starve the others. Limiters idle for longer than idleTTL are
// dropped on the next sweep.
type Keyed struct {
	newLimiter func() RateLimiter
	idleTTL    time.Duration
	now        Clock
	mu         sync.Mutex
	limiters   map[string]*keyedEntry
	lastSweep  time.Time
}

type keyedEntry struct {
	limiter  RateLimiter
	lastSeen time.Time
}

// NewKeyed creates a Keyed limiter using factory for every new key.
func NewKeyed(factory func() RateLimiter, idleTTL time.Duration) *Keyed {
	return &Keyed{
		newLimiter: factory,
		idleTTL:    idleTTL,
		now:        time.Now,
		limiters:   make(map[string]*keyedEntry),
	}
}

// Allow applies the limiter of key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if k.idleTTL > 0 && now.Sub(k.lastSweep) > k.idleTTL {
		for id, e := range k.limiters {
			if now.Sub(e.lastSeen) > k.idleTTL {
				delete(k.limiters, id)
			}
		}
		k.lastSweep = now
	}
	e, ok := k.limiters[key]
	if !ok {
		e = &keyedEntry{limiter: k.newLimiter()}
		k.limiters[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.Allow()
}

// Len reports how many keys are currently tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
