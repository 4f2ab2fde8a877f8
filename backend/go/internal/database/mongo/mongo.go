package mongo

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient connects once and returns the shared MongoDB client.
func GetClient(cfg *config.MongoConfig, log *logger.Logger) (*mongo.Client, error) {
	once.Do(func() {
		opts := options.Client().ApplyURI(uri(cfg.Address))
		if cfg.Username != "" && cfg.Password != "" {
			opts.SetAuth(options.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, opts)
		if err != nil {
			initErr = fmt.Errorf("connect to mongodb: %w", err)
			return
		}
		if err = c.Ping(ctx, nil); err != nil {
			initErr = fmt.Errorf("ping mongodb: %w", err)
			return
		}

		log.WithField("database", cfg.Database).Info("connected to mongodb")
		client = c
	})

	return client, initErr
}

// Close disconnects the shared client.
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck pings the shared client.
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("mongodb client not initialised")
	}
	return client.Ping(ctx, nil)
}

func uri(address string) string {
	if strings.HasPrefix(address, "mongodb") {
		return address
	}
	return "mongodb://" + address
}
