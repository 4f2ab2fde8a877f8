package http

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/pkg/circuitbreaker"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 2048

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client wraps http.Client with an optional circuit breaker. Server errors
// (status >= 500) and transport errors count as breaker failures.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// ClientOption customises a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout       time.Duration
	name          string
	transport     http.RoundTripper
	onStateChange circuitbreaker.StateChangeFunc
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithName labels the circuit breaker.
func WithName(name string) ClientOption {
	return func(o *clientOptions) { o.name = name }
}

// WithTransport replaces the default transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// WithBreakerHook observes circuit breaker transitions.
func WithBreakerHook(fn circuitbreaker.StateChangeFunc) ClientOption {
	return func(o *clientOptions) { o.onStateChange = fn }
}

// NewClient creates a Client. The breaker is only installed when cfg.Enabled.
func NewClient(cfg config.CircuitBreakerConfig, opts ...ClientOption) (*Client, error) {
	o := clientOptions{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{httpClient: &http.Client{Timeout: o.timeout, Transport: o.transport}}
	if !cfg.Enabled {
		return c, nil
	}

	breaker, err := createCircuitBreaker(cfg,
		circuitbreaker.WithName(o.name),
		circuitbreaker.WithOnStateChange(o.onStateChange),
	)
	if err != nil {
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// Do executes req through the circuit breaker. A 5xx response is returned as a
// *StatusError with the body already closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, readStatusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

// DoJSON sends body (if not nil) as JSON and decodes a successful response into
// out (if not nil). Any status >= 400 is returned as a *StatusError.
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return readStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// BreakerState reports the breaker state; Closed when no breaker is installed.
func (c *Client) BreakerState() circuitbreaker.State {
	if c.breaker == nil {
		return circuitbreaker.Closed
	}
	return c.breaker.State()
}

func readStatusError(resp *http.Response) error {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: string(b)}
}
