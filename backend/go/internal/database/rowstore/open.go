package rowstore

import (
	"AgentOffice/backend/go/internal/config"
	mongodb "AgentOffice/backend/go/internal/database/mongo"
	"AgentOffice/backend/go/internal/metrics"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"AgentOffice/backend/go/pkg/logger"
	"fmt"
)

// Storage drivers accepted in storage.driver.
const (
	DriverREST   = "rest"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Open builds the Gateway selected by cfg.Storage.Driver. An empty driver
// yields a degraded Gateway without error.
func Open(cfg *config.AppConfig, log *logger.Logger, m *metrics.Metrics) (*Gateway, error) {
	timeout := config.Duration(cfg.Storage.REST.Timeout, defaultTimeout)

	var backend Backend
	switch cfg.Storage.Driver {
	case "":
		log.Warn("no storage driver configured, running without persistence")
	case DriverMemory:
		backend = NewMemoryBackend()
	case DriverREST:
		client, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker,
			pkghttp.WithTimeout(timeout),
			pkghttp.WithName("rowstore"),
			pkghttp.WithBreakerHook(m.BreakerHook()),
		)
		if err != nil {
			return nil, fmt.Errorf("rest store client: %w", err)
		}
		rb, err := NewRESTBackend(cfg.Storage.REST, client)
		if err != nil {
			return nil, err
		}
		backend = rb
	case DriverMongo:
		client, err := mongodb.GetClient(&cfg.Databases.MongoDB, log)
		if err != nil {
			return nil, err
		}
		mb, err := NewMongoBackend(client, cfg.Databases.MongoDB.Database)
		if err != nil {
			return nil, err
		}
		backend = mb
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return NewGateway(backend, timeout, log, m), nil
}
