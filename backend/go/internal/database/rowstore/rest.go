package rowstore

import (
	"AgentOffice/backend/go/internal/config"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RESTBackend talks to a PostgREST compatible endpoint (Supabase).
type RESTBackend struct {
	base   string
	apiKey string
	client *pkghttp.Client
}

// NewRESTBackend builds a backend for cfg. The client carries the timeout and
// circuit breaker.
func NewRESTBackend(cfg config.RESTStoreConfig, client *pkghttp.Client) (*RESTBackend, error) {
	if cfg.URL == "" {
		return nil, errors.New("rest store url is empty")
	}
	if client == nil {
		return nil, errors.New("rest store needs an http client")
	}
	return &RESTBackend{
		base:   strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey: cfg.APIKey,
		client: client,
	}, nil
}

func (b *RESTBackend) header(prefer ...string) http.Header {
	h := http.Header{}
	if b.apiKey != "" {
		h.Set("apikey", b.apiKey)
		h.Set("Authorization", "Bearer "+b.apiKey)
	}
	if len(prefer) > 0 {
		h.Set("Prefer", strings.Join(prefer, ","))
	}
	return h
}

func (b *RESTBackend) tableURL(table string, q url.Values) string {
	u := b.base + "/" + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (b *RESTBackend) Insert(ctx context.Context, table string, row Row) error {
	if err := b.client.DoJSON(ctx, http.MethodPost, b.tableURL(table, nil), b.header("return=minimal"), row, nil); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (b *RESTBackend) InsertReturning(ctx context.Context, table string, row Row) (Row, error) {
	var rows []Row
	if err := b.client.DoJSON(ctx, http.MethodPost, b.tableURL(table, nil), b.header("return=representation"), row, &rows); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: empty representation", table)
	}
	return rows[0], nil
}

func (b *RESTBackend) Select(ctx context.Context, table string, f Filter) ([]Row, error) {
	var rows []Row
	if err := b.client.DoJSON(ctx, http.MethodGet, b.tableURL(table, f.Query()), b.header(), nil, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func (b *RESTBackend) Update(ctx context.Context, table string, f Filter, fields Row) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	q := f.Query()
	q.Del("order")
	q.Del("limit")
	q.Set("select", "id")
	var rows []Row
	if err := b.client.DoJSON(ctx, http.MethodPatch, b.tableURL(table, q), b.header("return=representation"), fields, &rows); err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return len(rows), nil
}

func (b *RESTBackend) Upsert(ctx context.Context, table string, row Row, conflict []string) (Row, error) {
	q := url.Values{}
	if len(conflict) > 0 {
		q.Set("on_conflict", strings.Join(conflict, ","))
	}
	var rows []Row
	h := b.header("resolution=merge-duplicates", "return=representation")
	if err := b.client.DoJSON(ctx, http.MethodPost, b.tableURL(table, q), h, row, &rows); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("upsert %s: empty representation", table)
	}
	return rows[0], nil
}

func (b *RESTBackend) Delete(ctx context.Context, table string, f Filter) (int, error) {
	if f.Empty() {
		return 0, ErrUnfilteredWrite
	}
	q := f.Query()
	q.Del("order")
	q.Del("limit")
	q.Set("select", "id")
	var rows []Row
	if err := b.client.DoJSON(ctx, http.MethodDelete, b.tableURL(table, q), b.header("return=representation"), nil, &rows); err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return len(rows), nil
}

// Ping requests the schema root, which PostgREST serves for any valid key.
func (b *RESTBackend) Ping(ctx context.Context) error {
	if err := b.client.DoJSON(ctx, http.MethodGet, b.base+"/", b.header(), nil, nil); err != nil {
		return fmt.Errorf("ping rest store: %w", err)
	}
	return nil
}
