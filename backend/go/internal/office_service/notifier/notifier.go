package notifier

import (
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"fmt"
	"html"
	"sync"
	"time"
)

const sendTimeout = 15 * time.Second

// Sender delivers rendered text to the chat bot.
type Sender interface {
	Send(ctx context.Context, text string) error
	Configured() bool
}

// DailyReport is the content of the daily summary.
type DailyReport struct {
	TasksDone     int
	Errors        int
	PendingQuests int
}

// Notifier renders the curated subset of events for the chat bot. Every
// method returns immediately; delivery happens in the background.
type Notifier struct {
	sender   Sender
	cooldown Cooldown
	log      *logger.Logger
	metrics  *metrics.Metrics
	pending  sync.WaitGroup
}

// New builds a notifier. A nil sender disables delivery.
func New(sender Sender, cooldown Cooldown, log *logger.Logger, m *metrics.Metrics) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	if cooldown == nil {
		cooldown = NewMemoryCooldown(15 * time.Minute)
	}
	return &Notifier{sender: sender, cooldown: cooldown, log: log.Named("notifier"), metrics: m}
}

// Enabled reports whether messages are actually delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil && n.sender.Configured()
}

func (n *Notifier) TaskCompleted(ctx context.Context, summary string) {
	n.send(ctx, "task_completed", "✅ <b>Задача выполнена</b>\n\n"+html.EscapeString(models.TruncateEllipsis(summary, 300)))
}

func (n *Notifier) ManagerPlan(ctx context.Context, message string) {
	n.send(ctx, "manager_plan", "🎯 <b>Manager</b>: "+html.EscapeString(models.Truncate(message, 200)))
}

func (n *Notifier) WorkerStarted(ctx context.Context, agent models.AgentDef, task string) {
	n.send(ctx, "worker_started", fmt.Sprintf("%s <b>%s</b> → %s",
		agent.Emoji, html.EscapeString(agent.Name), html.EscapeString(models.Truncate(task, 100))))
}

func (n *Notifier) QuestCreated(ctx context.Context, q models.Quest) {
	n.send(ctx, "quest_created", fmt.Sprintf("🎮 <b>Новый квест</b>: %s\n+%d XP",
		html.EscapeString(models.Truncate(q.Title, 100)), q.XPReward))
}

func (n *Notifier) DailySummary(ctx context.Context, r DailyReport) {
	n.send(ctx, "daily_report", fmt.Sprintf("📊 <b>Дневной отчёт</b>\n\nЗадач выполнено: %d\nОшибок: %d\nКвестов ждут ответа: %d",
		r.TasksDone, r.Errors, r.PendingQuests))
}

// Alert sends an operator alert unless one of the same kind went out within
// the cooldown period. It reports whether the alert was let through.
func (n *Notifier) Alert(ctx context.Context, kind, message string) bool {
	if !n.Enabled() {
		return false
	}
	if !n.cooldown.Allow(ctx, kind) {
		n.metrics.Notification("alert", "suppressed")
		return false
	}
	n.send(ctx, "alert", fmt.Sprintf("🚨 <b>%s</b>\n%s", html.EscapeString(kind), html.EscapeString(message)))
	return true
}

func (n *Notifier) send(ctx context.Context, kind, text string) {
	if !n.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := n.sender.Send(ctx, text); err != nil {
			n.metrics.Notification(kind, "failed")
			n.log.WithErr(err).WithField("kind", kind).Warn("notification failed")
			return
		}
		n.metrics.Notification(kind, "sent")
	}()
}

// Wait blocks until queued notifications are delivered.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.pending.Wait()
}
