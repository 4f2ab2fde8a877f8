package redis

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// GetClient connects once and returns the shared Redis client.
func GetClient(ctx context.Context, cfg *config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("connect to redis: %w", err)
			return
		}

		log.WithField("address", cfg.Address).Info("connected to redis")
		client = rdb
	})

	return client, initErr
}

// Close closes the shared client.
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck pings the shared client.
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis client not initialised")
	}
	return client.Ping(ctx).Err()
}
