package workflow

import (
	"AgentOffice/backend/go/internal/config"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("workflow engine is not configured")

// Dispatcher hands tasks to the external workflow engine.
type Dispatcher struct {
	client          *pkghttp.Client
	webhookURL      string
	callbackURL     string
	healthURL       string
	dispatchTimeout time.Duration
	healthTimeout   time.Duration
}

type dispatchRequest struct {
	Task        string `json:"task"`
	TaskID      int64  `json:"taskId"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// New builds a dispatcher. The client should not impose its own timeout
// shorter than the dispatch timeout.
func New(cfg config.WorkflowConfig, client *pkghttp.Client) *Dispatcher {
	health := cfg.HealthURL
	if health == "" {
		health = originOf(cfg.WebhookURL) + "/healthz"
	}
	return &Dispatcher{
		client:          client,
		webhookURL:      cfg.WebhookURL,
		callbackURL:     cfg.CallbackURL,
		healthURL:       health,
		dispatchTimeout: config.Duration(cfg.DispatchTimeout, 300*time.Second),
		healthTimeout:   config.Duration(cfg.HealthTimeout, 10*time.Second),
	}
}

// Configured reports whether tasks can be dispatched.
func (d *Dispatcher) Configured() bool {
	return d != nil && d.client != nil && d.webhookURL != ""
}

// Dispatch posts one task. The engine reports progress later through the
// callback endpoint, so the response body is ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, task string, taskID int64) error {
	if !d.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	body := dispatchRequest{Task: task, TaskID: taskID, CallbackURL: d.callbackURL}
	if err := d.client.DoJSON(ctx, http.MethodPost, d.webhookURL, nil, body, nil); err != nil {
		return fmt.Errorf("dispatch task %d: %w", taskID, err)
	}
	return nil
}

// Health probes the engine's health endpoint.
func (d *Dispatcher) Health(ctx context.Context) error {
	if !d.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()
	if err := d.client.DoJSON(ctx, http.MethodGet, d.healthURL, nil, nil, nil); err != nil {
		return fmt.Errorf("workflow health: %w", err)
	}
	return nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
