package workflow

import (
	"AgentOffice/backend/go/internal/config"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *pkghttp.Client {
	t.Helper()
	c, err := pkghttp.NewClient(config.CircuitBreakerConfig{})
	require.NoError(t, err)
	return c
}

func TestDispatchPostsTask(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhook/office", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(config.WorkflowConfig{
		WebhookURL:  srv.URL + "/webhook/office",
		CallbackURL: "http://office/api/n8n/callback",
	}, newClient(t))
	require.True(t, d.Configured())
	require.NoError(t, d.Dispatch(context.Background(), "write a post", 17))

	assert.Equal(t, "write a post", got["task"])
	assert.Equal(t, float64(17), got["taskId"])
	assert.Equal(t, "http://office/api/n8n/callback", got["callbackUrl"])
}

func TestDispatchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow inactive", http.StatusNotFound)
	}))
	defer srv.Close()

	d := New(config.WorkflowConfig{WebhookURL: srv.URL}, newClient(t))
	err := d.Dispatch(context.Background(), "x", 1)
	require.Error(t, err)
	var se *pkghttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestHealthDefaultsToOrigin(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	defer srv.Close()

	d := New(config.WorkflowConfig{WebhookURL: srv.URL + "/webhook/abc"}, newClient(t))
	require.NoError(t, d.Health(context.Background()))
	assert.Equal(t, "/healthz", path)
}

func TestNotConfigured(t *testing.T) {
	d := New(config.WorkflowConfig{}, newClient(t))
	assert.False(t, d.Configured())
	assert.ErrorIs(t, d.Dispatch(context.Background(), "x", 1), ErrNotConfigured)
	assert.ErrorIs(t, d.Health(context.Background()), ErrNotConfigured)

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Configured())
}
