package http

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/pkg/circuitbreaker"
	"AgentOffice/backend/go/pkg/httpmiddleware"
	"AgentOffice/backend/go/pkg/ratelimiter"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server wraps http.Server and applies the configured middleware chain around
// the application handler.
type Server struct {
	httpServer *http.Server
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithMiddleware appends extra middlewares, outermost first.
func WithMiddleware(mw ...Middleware) ServerOption {
	return func(s *Server) {
		for i := len(mw) - 1; i >= 0; i-- {
			s.httpServer.Handler = mw[i](s.httpServer.Handler)
		}
	}
}

// NewServer creates a Server for handler. Per-client rate limiting and the
// inbound circuit breaker are applied when enabled in cfg.
func NewServer(cfg *config.AppConfig, handler http.Handler, opts ...ServerOption) (*Server, error) {
	var middlewares []Middleware

	if cfg.Middleware.RateLimiter.Enabled {
		limiter, err := NewKeyedRateLimiter(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		middlewares = append(middlewares, httpmiddleware.RateLimit(limiter))
	}

	if cfg.Middleware.CircuitBreaker.Enabled && cfg.Middleware.CircuitBreaker.Inbound {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker, circuitbreaker.WithName("inbound"))
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	srv := &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8000"
	}
	return srv, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	if s.httpServer.Addr == "" {
		return fmt.Errorf("server address is not set")
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewKeyedRateLimiter builds a per-client limiter from the configuration.
func NewKeyedRateLimiter(cfg config.RateLimiterConfig) (*ratelimiter.Keyed, error) {
	factory, err := limiterFactory(cfg)
	if err != nil {
		return nil, err
	}
	return ratelimiter.NewKeyed(factory, 10*time.Minute), nil
}

func limiterFactory(cfg config.RateLimiterConfig) (func() ratelimiter.RateLimiter, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		return func() ratelimiter.RateLimiter { return ratelimiter.NewTokenBucket(conf.Rate, conf.Capacity) }, nil
	case "fixedWindow":
		conf := cfg.FixedWindow
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
		return func() ratelimiter.RateLimiter { return ratelimiter.NewFixedWindowCounter(conf.Limit, window) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

func createCircuitBreaker(cfg config.CircuitBreakerConfig, opts ...circuitbreaker.Option) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout, opts...), nil
}
