package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickingClock struct{ t time.Time }

func (c *tickingClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	gw := rowstore.NewGateway(rowstore.NewMemoryBackend(), time.Second, logger.Discard(), nil)
	clock := &tickingClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(gw).WithClock(clock.now)
}

func TestDegradedStore(t *testing.T) {
	s := New(rowstore.NewGateway(nil, time.Second, logger.Discard(), nil))
	ctx := context.Background()

	assert.False(t, s.Available())
	_, ok := s.CreatePipelineTask(ctx, "x")
	assert.False(t, ok)
	_, ok = s.CreateQuest(ctx, models.NewQuest{Title: "q"})
	assert.False(t, ok)
	assert.False(t, s.CompleteQuest(ctx, 1, "r"))
	assert.False(t, s.UpdateScheduled(ctx, 1, ScheduledUpdate{}))
	assert.Empty(t, s.ListQuests(ctx, "", 10))
	assert.NotNil(t, s.ListQuests(ctx, "", 10))
	assert.Empty(t, s.RecentChat(ctx, 10))
	assert.Empty(t, s.MessagesLike(ctx, "abc", 10))
	s.SaveChatMessage(ctx, models.NewUserMessage("hi", time.Now()))
	s.AddDiaryEntry(ctx, "qa", "status_change", "x")

	b := s.Briefing(ctx)
	assert.False(t, b.StoreAvailable)
	assert.Empty(t, b.PendingQuests)
}

func TestPipelineTasks(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	task, ok := s.CreatePipelineTask(ctx, "Write an article")
	require.True(t, ok)
	assert.Equal(t, models.PipelineProcessing, task.Status)
	assert.NotZero(t, task.ID)

	cutoff := s.now().Add(time.Minute)
	assert.Len(t, s.StalePipelineTasks(ctx, cutoff), 1)

	require.True(t, s.MarkPipelineTask(ctx, task.ID, models.PipelineDone, "ok"))
	got, ok := s.GetPipelineTask(ctx, task.ID)
	require.True(t, ok)
	assert.Equal(t, models.PipelineDone, got.Status)
	assert.NotNil(t, got.FinishedAt)
	assert.Empty(t, s.StalePipelineTasks(ctx, cutoff))

	assert.False(t, s.MarkPipelineTask(ctx, task.ID, models.PipelineError, "late"))
	got, ok = s.GetPipelineTask(ctx, task.ID)
	require.True(t, ok)
	assert.Equal(t, models.PipelineDone, got.Status)
	assert.Equal(t, "ok", got.Summary)
}

func TestScheduledTasks(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	first, ok := s.CreateScheduled(ctx, "First", models.HorizonDay, models.PriorityNormal)
	require.True(t, ok)
	second, ok := s.CreateScheduled(ctx, "Second", models.HorizonWeek, models.PriorityUrgent)
	require.True(t, ok)
	assert.Equal(t, models.ScheduledPending, first.Status)
	assert.Equal(t, models.ReviewNone, first.ReviewStatus)

	assert.Len(t, s.ListScheduled(ctx, models.HorizonWeek, "", 0), 1)

	inProgress := models.ScheduledInProgress
	link := int64(42)
	require.True(t, s.UpdateScheduled(ctx, first.ID, ScheduledUpdate{Status: &inProgress, LinkedTaskID: &link}))
	require.True(t, s.UpdateScheduled(ctx, second.ID, ScheduledUpdate{Status: &inProgress}))

	linked, ok := s.ScheduledByLinkedTask(ctx, 42)
	require.True(t, ok)
	assert.Equal(t, first.ID, linked.ID)

	latest, ok := s.LatestInProgressScheduled(ctx)
	require.True(t, ok)
	assert.Equal(t, second.ID, latest.ID)

	done := models.ScheduledDone
	result := "all good"
	require.True(t, s.UpdateScheduled(ctx, first.ID, ScheduledUpdate{Status: &done, Result: &result}))
	got, _ := s.GetScheduled(ctx, first.ID)
	assert.Equal(t, "all good", got.Result)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, s.CountDoneSince(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	require.True(t, s.UpdateScheduled(ctx, first.ID, ScheduledUpdate{ClearResult: true}))
	got, _ = s.GetScheduled(ctx, first.ID)
	assert.Empty(t, got.Result)

	assert.False(t, s.UpdateScheduled(ctx, 999, ScheduledUpdate{Status: &done}))
}

func TestQuests(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	taskID := int64(7)
	for i := 0; i < 2; i++ {
		_, ok := s.CreateQuest(ctx, models.NewQuest{
			Title:     fmt.Sprintf("Provide item %d", i),
			QuestType: models.QuestInfo,
			Agent:     models.ManagerKey,
			XPReward:  10,
			TaskID:    &taskID,
			Action:    models.ActionUserAction,
			Data:      map[string]any{"input_label": fmt.Sprintf("Item %d", i)},
		})
		require.True(t, ok)
	}
	review, ok := s.CreateQuest(ctx, models.NewQuest{
		Title:     "Review",
		QuestType: models.QuestApprove,
		Data:      map[string]any{"task_id": float64(7), "action": models.ActionReview},
	})
	require.True(t, ok)
	require.NotNil(t, review.TaskID)
	assert.Equal(t, int64(7), *review.TaskID)
	assert.Equal(t, models.ActionReview, review.Action)

	actions := s.UserActionQuests(ctx, taskID)
	require.Len(t, actions, 2)
	assert.Equal(t, "Item 0", actions[0].InputLabel())
	assert.EqualValues(t, 7, actions[0].Data["task_id"])

	require.True(t, s.CompleteQuest(ctx, actions[0].ID, "token-123"))
	assert.False(t, s.CompleteQuest(ctx, actions[0].ID, "again"))

	got, ok := s.GetQuest(ctx, actions[0].ID)
	require.True(t, ok)
	assert.Equal(t, models.QuestCompleted, got.Status)
	assert.Equal(t, "token-123", got.Response)

	assert.Len(t, s.ListQuests(ctx, models.QuestPending, 0), 2)
}

func TestChatHistoryOrder(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	clock := &tickingClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	for i := 0; i < 5; i++ {
		s.SaveChatMessage(ctx, models.NewUserMessage(fmt.Sprintf("m%d", i), clock.now()))
	}
	s.gw.Wait()
	_, ok := s.SaveDirectMessage(ctx, "coder", models.RoleDirectUser, "private")
	require.True(t, ok)

	chat := s.RecentChat(ctx, 3)
	require.Len(t, chat, 3)
	assert.Equal(t, "m2", chat[0].Content)
	assert.Equal(t, "m4", chat[2].Content)

	direct := s.DirectMessages(ctx, "coder", 10)
	require.Len(t, direct, 1)
	assert.Equal(t, "private", direct[0].Content)

	assert.Len(t, s.MessagesLike(ctx, "m3", 10), 1)
}

func TestMemoryAndEcosystem(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	_, ok := s.SaveMemory(ctx, models.AgentMemory{Agent: "coder", MemoryType: "lesson", Content: "low", Importance: 2})
	require.True(t, ok)
	_, ok = s.SaveMemory(ctx, models.AgentMemory{Agent: "coder", MemoryType: "lesson", Content: "high", Importance: 9})
	require.True(t, ok)
	_, ok = s.SaveMemory(ctx, models.AgentMemory{Agent: "qa", MemoryType: "lesson", Content: "other"})
	require.True(t, ok)

	_, ok = s.ReplaceEcosystemMap(ctx, "v1")
	require.True(t, ok)
	eco, ok := s.ReplaceEcosystemMap(ctx, "v2")
	require.True(t, ok)
	assert.Equal(t, 10, eco.Importance)
	assert.Len(t, s.ListMemory(ctx, models.SystemAgent, models.MemoryEcosystemMap, 0), 1)

	mc := s.MemoryContext(ctx, "coder", 10)
	require.Len(t, mc, 3)
	assert.Equal(t, "v2", mc[0].Content)
	assert.Equal(t, "high", mc[1].Content)

	b := s.Briefing(ctx)
	assert.Equal(t, "v2", b.EcosystemMap)
	assert.True(t, b.StoreAvailable)
}

func TestProfileUpsertAndStats(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	a, ok := s.UpsertProfile(ctx, "stack", "lang", "go", "")
	require.True(t, ok)
	assert.Equal(t, "explicit", a.Source)
	b, ok := s.UpsertProfile(ctx, "stack", "lang", "rust", "inferred")
	require.True(t, ok)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, s.ListProfile(ctx, "stack"), 1)

	for _, r := range []int{4, 5} {
		_, ok := s.SaveFeedback(ctx, models.TaskFeedback{TaskID: 1, Agent: "coder", Rating: r})
		require.True(t, ok)
	}
	_, ok = s.SaveError(ctx, models.AgentError{Agent: "coder", ErrorDetail: "boom"})
	require.True(t, ok)

	stats := s.AgentStats(ctx, "coder", models.AgentIdle)
	assert.Equal(t, 2, stats.Feedbacks)
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, "idle", stats.Status)

	errs := s.ListErrors(ctx, "coder", 0)
	require.Len(t, errs, 1)
	assert.Equal(t, "runtime", errs[0].ErrorType)
	require.True(t, s.UpdateReflection(ctx, errs[0].ID, "r", "l"))
	got, _ := s.GetError(ctx, errs[0].ID)
	assert.Equal(t, "l", got.Lesson)
}

func TestAnalyticsOverview(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	_, ok := s.CreatePipelineTask(ctx, "before the window")
	require.True(t, ok)
	since := s.now()

	done, ok := s.CreatePipelineTask(ctx, "finished")
	require.True(t, ok)
	require.True(t, s.MarkPipelineTask(ctx, done.ID, models.PipelineDone, "ok"))
	_, ok = s.CreatePipelineTask(ctx, "running")
	require.True(t, ok)

	q, ok := s.CreateQuest(ctx, models.NewQuest{Title: "Approve", QuestType: models.QuestApprove, XPReward: 25})
	require.True(t, ok)
	require.True(t, s.CompleteQuest(ctx, q.ID, "yes"))
	_, ok = s.CreateQuest(ctx, models.NewQuest{Title: "Pending", XPReward: 10})
	require.True(t, ok)

	for _, agent := range []string{"coder", "coder", "qa"} {
		_, ok := s.SaveError(ctx, models.AgentError{Agent: agent, ErrorDetail: "boom"})
		require.True(t, ok)
	}
	for _, r := range []int{3, 4} {
		_, ok := s.SaveFeedback(ctx, models.TaskFeedback{TaskID: done.ID, Agent: "coder", Rating: r})
		require.True(t, ok)
	}

	o := s.AnalyticsOverview(ctx, since, 7)
	assert.Equal(t, 7, o.Days)
	assert.True(t, o.StoreAvailable)
	assert.Equal(t, 2, o.TasksTotal)
	assert.Equal(t, map[string]int{"done": 1, "processing": 1}, o.TasksByStatus)
	assert.Equal(t, 1, o.QuestsCompleted)
	assert.Equal(t, 25, o.XPEarned)
	assert.Equal(t, 3, o.ErrorsTotal)
	assert.Equal(t, map[string]int{"coder": 2, "qa": 1}, o.ErrorsByAgent)
	assert.Equal(t, 2, o.Feedbacks)
	assert.Equal(t, 3.5, o.AverageRating)
}

func TestListArtifacts(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	for i, status := range []string{"ready", "deployed", "ready"} {
		s.gw.Insert(ctx, TableArtifacts, rowstore.Row{
			"task_id":      int64(i + 1),
			"project_name": fmt.Sprintf("site-%d", i),
			"status":       status,
			"source":       "large blob",
			"created_at":   s.stamp(),
			"updated_at":   s.stamp(),
		})
	}

	all := s.ListArtifacts(ctx, "", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "site-2", all[0].ProjectName)

	ready := s.ListArtifacts(ctx, "ready", 1)
	require.Len(t, ready, 1)
	assert.Equal(t, "site-2", ready[0].ProjectName)
	require.NotNil(t, ready[0].TaskID)
	assert.Equal(t, int64(3), *ready[0].TaskID)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 50, Limit(0, 50))
	assert.Equal(t, 200, Limit(5000, 50))
	assert.Equal(t, 3, Limit(3, 50))
}
