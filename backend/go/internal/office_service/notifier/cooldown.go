package notifier

import (
	"AgentOffice/backend/go/pkg/logger"
	"AgentOffice/backend/go/pkg/ratelimiter"
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cooldown decides whether an alert of a given kind may fire now.
type Cooldown interface {
	Allow(ctx context.Context, key string) bool
}

// MemoryCooldown keeps cooldowns in process memory.
type MemoryCooldown struct {
	gate *ratelimiter.Cooldown
}

func NewMemoryCooldown(period time.Duration) *MemoryCooldown {
	return &MemoryCooldown{gate: ratelimiter.NewCooldown(period)}
}

func (c *MemoryCooldown) Allow(_ context.Context, key string) bool {
	return c.gate.Allow(key)
}

// RedisCooldown shares cooldowns between processes with SET NX EX.
type RedisCooldown struct {
	client *redis.Client
	period time.Duration
	prefix string
	log    *logger.Logger
}

func NewRedisCooldown(client *redis.Client, period time.Duration, log *logger.Logger) *RedisCooldown {
	return &RedisCooldown{client: client, period: period, prefix: "agent_office:alert:", log: log}
}

// Allow fails open when Redis is unreachable.
func (c *RedisCooldown) Allow(ctx context.Context, key string) bool {
	ok, err := c.client.SetNX(ctx, c.prefix+key, time.Now().Unix(), c.period).Result()
	if err != nil {
		c.log.WithErr(err).WithField("key", key).Warn("redis cooldown unavailable")
		return true
	}
	return ok
}
