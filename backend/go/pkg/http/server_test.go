package http

import (
	"AgentOffice/backend/go/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Middleware: config.MiddlewareConfig{
			RateLimiter: config.RateLimiterConfig{
				Enabled:   true,
				Algorithm: "tokenBucket",
				TokenBucket: config.TokenBucketConfig{
					Rate:     1,
					Capacity: 2,
				},
			},
			CircuitBreaker: config.CircuitBreakerConfig{
				Enabled:          true,
				Inbound:          true,
				FailureThreshold: 2,
				SuccessThreshold: 2,
				Timeout:          "10s",
			},
		},
	}
}

func TestNewServerWithAddress(t *testing.T) {
	srv, err := NewServer(newTestConfig(), http.NotFoundHandler(), WithAddress(":9999"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", srv.Addr())

	srv, err = NewServer(&config.AppConfig{}, http.NotFoundHandler())
	require.NoError(t, err)
	assert.Equal(t, ":8000", srv.Addr())
}

func TestRateLimiterMiddleware(t *testing.T) {
	srv, err := NewServer(newTestConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.Enabled = false
	srv, err := NewServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/fail")
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/fail")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRateLimiterAlgorithm(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.Algorithm = "slidingLog"
	_, err := NewServer(cfg, http.NotFoundHandler())
	assert.Error(t, err)
}
