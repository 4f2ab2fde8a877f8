package monitor

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/notifier"
	"AgentOffice/backend/go/internal/office_service/state"
	"AgentOffice/backend/go/internal/office_service/store"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker probes the workflow engine.
type HealthChecker interface {
	Configured() bool
	Health(ctx context.Context) error
}

// Monitor runs the periodic operator checks. Every finding is sent as an
// alert through the notifier, which applies the per-kind cooldown.
type Monitor struct {
	cfg      config.MonitorConfig
	store    *store.Store
	state    *state.Store
	notifier *notifier.Notifier
	workflow HealthChecker
	log      *logger.Logger
	now      func() time.Time
}

func New(cfg config.MonitorConfig, st *store.Store, agents *state.Store, n *notifier.Notifier, workflow HealthChecker, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.Discard()
	}
	return &Monitor{
		cfg:      cfg,
		store:    st,
		state:    agents,
		notifier: n,
		workflow: workflow,
		log:      log.Named("monitor"),
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Run starts every loop and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.log.Info("monitor disabled")
		return nil
	}
	m.log.Info("starting system monitor")
	delay := config.Duration(m.cfg.InitialDelay, 30*time.Second)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.every(ctx, "health", delay, config.Duration(m.cfg.HealthInterval, time.Minute), m.CheckHealth)
		return nil
	})
	g.Go(func() error {
		m.every(ctx, "error_rate", 2*delay, config.Duration(m.cfg.ErrorRateInterval, 5*time.Minute), m.CheckErrorRate)
		return nil
	})
	g.Go(func() error {
		m.every(ctx, "stuck_agents", 4*delay, config.Duration(m.cfg.StuckInterval, 2*time.Minute), m.CheckStuckAgents)
		return nil
	})
	if !m.cfg.DailyReportDisabled {
		g.Go(func() error {
			m.dailyReportLoop(ctx)
			return nil
		})
	}
	return g.Wait()
}

// every runs check after delay and then on each tick. A failing check is
// logged and the loop carries on.
func (m *Monitor) every(ctx context.Context, name string, delay, interval time.Duration, check func(context.Context) error) {
	if !sleep(ctx, delay) {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := check(ctx); err != nil {
			m.log.WithErr(err).WithField("check", name).Error("monitor check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) dailyReportLoop(ctx context.Context) {
	for {
		now := m.now()
		if !sleep(ctx, NextMidnight(now).Sub(now)) {
			return
		}
		r := m.DailyReport(ctx)
		m.notifier.DailySummary(ctx, r)
		m.log.WithField("tasks_done", r.TasksDone).WithField("errors", r.Errors).Info("daily report sent")
	}
}

// CheckHealth probes the workflow engine and the row store.
func (m *Monitor) CheckHealth(ctx context.Context) error {
	if m.workflow != nil && m.workflow.Configured() {
		if err := m.workflow.Health(ctx); err != nil {
			kind, msg := classifyWorkflowError(err)
			m.alert(ctx, kind, msg)
		}
	}
	if m.store.Available() {
		if err := m.store.Gateway().Ping(ctx); err != nil {
			m.alert(ctx, "db_error", "Store error: "+models.Truncate(err.Error(), 200))
		}
	}
	return nil
}

func classifyWorkflowError(err error) (string, string) {
	var se *pkghttp.StatusError
	switch {
	case errors.As(err, &se):
		return "workflow_unhealthy", fmt.Sprintf("workflow engine вернул %d", se.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "workflow_timeout", "workflow engine не отвечает (timeout)"
	default:
		return "workflow_down", "workflow engine недоступен: " + models.Truncate(err.Error(), 200)
	}
}

// CheckErrorRate alerts when the agents reported at least the threshold of
// errors within the window.
func (m *Monitor) CheckErrorRate(ctx context.Context) error {
	if !m.store.Available() {
		return nil
	}
	window := config.Duration(m.cfg.ErrorRateWindow, 10*time.Minute)
	threshold := m.cfg.ErrorRateThreshold
	if threshold <= 0 {
		threshold = 3
	}
	errs := m.store.ErrorsSince(ctx, m.now().Add(-window))
	if len(errs) < threshold {
		return nil
	}
	seen := make(map[string]bool)
	var agents []string
	for _, e := range errs {
		if !seen[e.Agent] {
			seen[e.Agent] = true
			agents = append(agents, e.Agent)
		}
	}
	sort.Strings(agents)
	m.alert(ctx, "high_error_rate", fmt.Sprintf("%d ошибок за %s. Агенты: %s",
		len(errs), window, strings.Join(agents, ", ")))
	return nil
}

// CheckStuckAgents alerts once per agent busy for longer than StuckAfter.
func (m *Monitor) CheckStuckAgents(ctx context.Context) error {
	after := config.Duration(m.cfg.StuckAfter, 10*time.Minute)
	now := m.now()
	for _, a := range m.state.Stuck(after) {
		mins := int(now.Sub(a.LastStatusChange).Minutes())
		m.alert(ctx, "stuck_"+a.Key, fmt.Sprintf("%s в статусе '%s' уже %d мин", a.Key, a.Status, mins))
	}
	return nil
}

// DailyReport summarises the last 24 hours.
func (m *Monitor) DailyReport(ctx context.Context) notifier.DailyReport {
	since := m.now().Add(-24 * time.Hour)
	return notifier.DailyReport{
		TasksDone:     m.store.CountDoneSince(ctx, since),
		Errors:        len(m.store.ErrorsSince(ctx, since)),
		PendingQuests: len(m.store.ListQuests(ctx, models.QuestPending, store.MaxListLimit)),
	}
}

func (m *Monitor) alert(ctx context.Context, kind, message string) {
	m.log.WithField("kind", kind).Warn(message)
	m.notifier.Alert(ctx, kind, message)
}

// NextMidnight is the first 00:00 UTC strictly after now.
func NextMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
