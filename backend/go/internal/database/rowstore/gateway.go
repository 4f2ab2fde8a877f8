package rowstore

import (
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned by Ping when no backend is configured.
var ErrUnavailable = errors.New("row store not configured")

const defaultTimeout = 15 * time.Second

// Gateway is the only path to persistence. It never returns backend errors:
// failures are logged and counted, reads come back empty and writes report
// nothing written. A Gateway without a backend runs in degraded mode.
type Gateway struct {
	backend Backend
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
	pending sync.WaitGroup
}

// NewGateway wraps backend, which may be nil.
func NewGateway(backend Backend, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gateway{backend: backend, timeout: timeout, log: log.Named("rowstore"), metrics: m}
}

// Available reports whether a backend is configured.
func (g *Gateway) Available() bool {
	return g != nil && g.backend != nil
}

func (g *Gateway) fail(op, table string, err error) {
	g.metrics.GatewayFailure(op, table)
	g.log.WithField("operation", op).WithField("table", table).WithErr(err).Warn("row store call failed")
}

// Insert writes row in the background. Use Wait to drain pending writes.
func (g *Gateway) Insert(ctx context.Context, table string, row Row) {
	if !g.Available() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		if err := g.backend.Insert(ctx, table, row); err != nil {
			g.fail("insert", table, err)
		}
	}()
}

// InsertReturning writes row and returns the stored record, or nil.
func (g *Gateway) InsertReturning(ctx context.Context, table string, row Row) Row {
	if !g.Available() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	out, err := g.backend.InsertReturning(ctx, table, row)
	if err != nil {
		g.fail("insert", table, err)
		return nil
	}
	return out
}

func (g *Gateway) Select(ctx context.Context, table string, f Filter) []Row {
	if !g.Available() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	rows, err := g.backend.Select(ctx, table, f)
	if err != nil {
		g.fail("select", table, err)
		return nil
	}
	return rows
}

// SelectOne returns the first matching row, or nil.
func (g *Gateway) SelectOne(ctx context.Context, table string, f Filter) Row {
	rows := g.Select(ctx, table, f.WithLimit(1))
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// Update returns the number of rows changed; 0 on failure or no match.
func (g *Gateway) Update(ctx context.Context, table string, f Filter, fields Row) int {
	if !g.Available() {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	n, err := g.backend.Update(ctx, table, f, fields)
	if err != nil {
		g.fail("update", table, err)
		return 0
	}
	return n
}

func (g *Gateway) Upsert(ctx context.Context, table string, row Row, conflict ...string) Row {
	if !g.Available() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	out, err := g.backend.Upsert(ctx, table, row, conflict)
	if err != nil {
		g.fail("upsert", table, err)
		return nil
	}
	return out
}

func (g *Gateway) Delete(ctx context.Context, table string, f Filter) int {
	if !g.Available() {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	n, err := g.backend.Delete(ctx, table, f)
	if err != nil {
		g.fail("delete", table, err)
		return 0
	}
	return n
}

// Ping is the one call that reports an error, for health checks.
func (g *Gateway) Ping(ctx context.Context) error {
	if !g.Available() {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.backend.Ping(ctx)
}

// Wait blocks until background inserts have finished.
func (g *Gateway) Wait() {
	if g == nil {
		return
	}
	g.pending.Wait()
}
