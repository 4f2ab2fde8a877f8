package service

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/store"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	workflowMissingText = "⚠️ Workflow webhook не настроен."
	staleSummary        = "Timeout: задача не получила ответ от n8n в течение 10 минут"
	timelinePrefixRunes = 30
)

// SubmitTask records a task typed by the user and forwards it to the
// workflow engine.
func (s *OfficeService) SubmitTask(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return invalid("empty content")
	}
	if utf8.RuneCountInString(content) > MaxTaskContent {
		return invalid("content too long (max %d)", MaxTaskContent)
	}
	msg := s.state.AddUserMessage(content)
	s.broadcast(models.ChatEvent(msg))
	s.store.SaveChatMessage(ctx, msg)
	s.Forward(ctx, content)
	return nil
}

// Forward creates a pipeline task for content and dispatches it in the
// background. It returns the pipeline task id, or false when nothing was
// dispatched or the task could not be persisted.
func (s *OfficeService) Forward(ctx context.Context, content string) (int64, bool) {
	if !s.canDispatch() {
		s.metrics.Dispatch("not_configured")
		s.agentChat(ctx, models.ManagerKey, workflowMissingText)
		return 0, false
	}
	task, ok := s.store.CreatePipelineTask(ctx, content)
	if !ok {
		// Without a store the engine can still run; callbacks fall back to
		// the anonymous cycle.
		s.log.Warn("pipeline task not persisted, dispatching without id")
	}
	s.cycles.begin(task.ID)
	s.broadcast(models.TasksUpdateEvent())
	s.spawn(ctx, "dispatch", func(ctx context.Context) {
		s.dispatch(ctx, content, task.ID)
	})
	return task.ID, ok
}

func (s *OfficeService) canDispatch() bool {
	return s.dispatcher != nil && s.dispatcher.Configured()
}

func (s *OfficeService) dispatch(ctx context.Context, content string, taskID int64) {
	err := s.dispatcher.Dispatch(ctx, content, taskID)
	if err == nil {
		s.metrics.Dispatch("ok")
		return
	}
	s.metrics.Dispatch("error")
	s.log.WithErr(err).WithField("task_id", taskID).Error("dispatch to workflow engine failed")
	if taskID > 0 {
		s.store.MarkPipelineTask(ctx, taskID, models.PipelineError, models.Truncate("workflow engine error: "+err.Error(), pipelineSummaryRune))
	}
	s.cycles.forget(taskID)
	s.systemChat(ctx, "Ошибка отправки задачи в workflow: "+models.Truncate(err.Error(), 200))
	s.broadcast(models.TasksUpdateEvent())
}

func (s *OfficeService) ListPipelineTasks(ctx context.Context, limit int) []models.PipelineTask {
	return s.store.ListPipelineTasks(ctx, limit)
}

func (s *OfficeService) PipelineTask(ctx context.Context, id int64) (models.PipelineTask, error) {
	t, ok := s.store.GetPipelineTask(ctx, id)
	if !ok {
		return t, ErrNotFound
	}
	return t, nil
}

// CreateScheduledTask validates and stores a new scheduled task. Empty
// horizon and priority default to now and normal.
func (s *OfficeService) CreateScheduledTask(ctx context.Context, title string, horizon models.Horizon, priority models.Priority) (models.ScheduledTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.ScheduledTask{}, invalid("empty title")
	}
	if horizon == "" {
		horizon = models.HorizonNow
	}
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !horizon.Valid() {
		return models.ScheduledTask{}, invalid("invalid horizon %q", horizon)
	}
	if !priority.Valid() {
		return models.ScheduledTask{}, invalid("invalid priority %q", priority)
	}
	if err := s.requireStore(); err != nil {
		return models.ScheduledTask{}, err
	}
	t, ok := s.store.CreateScheduled(ctx, title, horizon, priority)
	if !ok {
		return t, ErrStoreWrite
	}
	s.broadcast(models.TasksUpdateEvent())
	return t, nil
}

func (s *OfficeService) ListScheduledTasks(ctx context.Context, horizon models.Horizon, status models.ScheduledStatus, limit int) ([]models.ScheduledTask, error) {
	if horizon != "" && !horizon.Valid() {
		return nil, invalid("invalid horizon %q", horizon)
	}
	if status != "" && !status.Valid() {
		return nil, invalid("invalid status %q", status)
	}
	return s.store.ListScheduled(ctx, horizon, status, limit), nil
}

func (s *OfficeService) scheduled(ctx context.Context, id int64) (models.ScheduledTask, error) {
	if err := s.requireStore(); err != nil {
		return models.ScheduledTask{}, err
	}
	t, ok := s.store.GetScheduled(ctx, id)
	if !ok {
		return t, ErrNotFound
	}
	return t, nil
}

// RunScheduledTask dispatches a scheduled task and links it to the new
// pipeline task.
func (s *OfficeService) RunScheduledTask(ctx context.Context, id int64) (int64, error) {
	t, err := s.scheduled(ctx, id)
	if err != nil {
		return 0, err
	}
	if t.Status == models.ScheduledDone || t.Status == models.ScheduledCancelled {
		return 0, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	if !s.canDispatch() {
		s.agentChat(ctx, models.ManagerKey, workflowMissingText)
		return 0, ErrWorkflowUnavailable
	}
	pipeline, ok := s.store.CreatePipelineTask(ctx, t.Title)
	if !ok {
		return 0, ErrStoreWrite
	}
	inProgress := models.ScheduledInProgress
	manager := models.ManagerKey
	s.store.UpdateScheduled(ctx, id, store.ScheduledUpdate{
		Status:        &inProgress,
		LinkedTaskID:  &pipeline.ID,
		AssignedAgent: &manager,
	})

	s.cycles.begin(pipeline.ID)
	s.broadcast(models.TasksUpdateEvent())
	s.spawn(ctx, "dispatch", func(ctx context.Context) {
		s.dispatch(ctx, t.Title, pipeline.ID)
	})
	return pipeline.ID, nil
}

// UpdateScheduledStatus applies an explicit status change.
func (s *OfficeService) UpdateScheduledStatus(ctx context.Context, id int64, status models.ScheduledStatus) error {
	if !status.Valid() {
		return invalid("invalid status %q", status)
	}
	t, err := s.scheduled(ctx, id)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	if !s.store.UpdateScheduled(ctx, id, store.ScheduledUpdate{Status: &status}) {
		return ErrStoreWrite
	}
	s.broadcast(models.TasksUpdateEvent())
	return nil
}

// Feedback is the user's verdict on a finished task.
type Feedback struct {
	Rating      int
	Comment     string
	NeedsRework bool
}

// SubmitFeedback stores the rating and moves the review status. Rework sends
// the task back to in_progress.
func (s *OfficeService) SubmitFeedback(ctx context.Context, taskID int64, fb Feedback) error {
	if fb.Rating == 0 {
		return invalid("rating required")
	}
	t, err := s.scheduled(ctx, taskID)
	if err != nil {
		return err
	}
	s.store.SaveFeedback(ctx, models.TaskFeedback{
		TaskID:  taskID,
		Agent:   models.RoleUser,
		Rating:  fb.Rating,
		Comment: strings.TrimSpace(fb.Comment),
	})

	var u store.ScheduledUpdate
	if fb.NeedsRework {
		if !t.Status.CanTransition(models.ScheduledInProgress) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.ScheduledInProgress)
		}
		inProgress := models.ScheduledInProgress
		rework := models.ReviewNeedsRework
		u = store.ScheduledUpdate{Status: &inProgress, ReviewStatus: &rework}
	} else {
		approved := models.ReviewApproved
		u = store.ScheduledUpdate{ReviewStatus: &approved}
	}
	if !s.store.UpdateScheduled(ctx, taskID, u) {
		return ErrStoreWrite
	}
	s.broadcast(models.TasksUpdateEvent())
	return nil
}

// ReopenTask sends a task back for rework. A non-empty note is left for the
// manager as a direct message.
func (s *OfficeService) ReopenTask(ctx context.Context, taskID int64, note string) error {
	t, err := s.scheduled(ctx, taskID)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(models.ScheduledInProgress) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.ScheduledInProgress)
	}
	inProgress := models.ScheduledInProgress
	rework := models.ReviewNeedsRework
	if !s.store.UpdateScheduled(ctx, taskID, store.ScheduledUpdate{Status: &inProgress, ReviewStatus: &rework}) {
		return ErrStoreWrite
	}
	if note = strings.TrimSpace(note); note != "" {
		s.store.SaveDirectMessage(ctx, models.ManagerKey, models.RoleDirectUser, fmt.Sprintf("Правки к задаче #%d: %s", taskID, note))
	}
	s.broadcast(models.TasksUpdateEvent())
	return nil
}

// TaskDetail gathers the linked pipeline task, the feedback and the chat
// messages mentioning the task title.
func (s *OfficeService) TaskDetail(ctx context.Context, taskID int64) (models.TaskDetail, error) {
	t, err := s.scheduled(ctx, taskID)
	if err != nil {
		return models.TaskDetail{}, err
	}
	d := models.TaskDetail{
		Task:      t,
		AgentLogs: []models.PipelineTask{},
		Feedback:  s.store.ListFeedback(ctx, "", taskID, 50),
		Timeline:  []models.StoredMessage{},
	}
	if t.LinkedTaskID != nil {
		if p, ok := s.store.GetPipelineTask(ctx, *t.LinkedTaskID); ok {
			d.AgentLogs = append(d.AgentLogs, p)
		}
	}
	if prefix := models.Truncate(t.Title, timelinePrefixRunes); prefix != "" {
		d.Timeline = s.store.MessagesLike(ctx, prefix, 50)
	}
	return d, nil
}

// RetryScheduledTask clears the result of a task and dispatches it again.
func (s *OfficeService) RetryScheduledTask(ctx context.Context, taskID int64) error {
	t, err := s.scheduled(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == models.ScheduledCancelled {
		return fmt.Errorf("%w: task is cancelled", ErrInvalidTransition)
	}
	inProgress := models.ScheduledInProgress
	none := models.ReviewNone
	s.store.UpdateScheduled(ctx, taskID, store.ScheduledUpdate{
		Status:       &inProgress,
		ReviewStatus: &none,
		ClearResult:  true,
	})
	pipelineID, ok := s.Forward(ctx, t.Title)
	if ok {
		s.store.UpdateScheduled(ctx, taskID, store.ScheduledUpdate{LinkedTaskID: &pipelineID})
	}
	return nil
}

// SweepStaleTasks marks pipeline tasks processing since before now-staleAfter
// as errored. It returns the number of tasks marked.
func (s *OfficeService) SweepStaleTasks(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-config.Duration(s.cfg.StaleAfter, 10*time.Minute))
	marked := 0
	for _, t := range s.store.StalePipelineTasks(ctx, cutoff) {
		if !s.store.MarkPipelineTask(ctx, t.ID, models.PipelineError, staleSummary) {
			continue
		}
		s.cycles.forget(t.ID)
		s.log.WithField("task_id", t.ID).Warn("pipeline task timed out")
		marked++
	}
	if marked > 0 {
		s.metrics.StaleTasks(marked)
		s.broadcast(models.TasksUpdateEvent())
	}
	return marked
}

// RunStaleSweeper sweeps on every tick until ctx is cancelled.
func (s *OfficeService) RunStaleSweeper(ctx context.Context) error {
	ticker := time.NewTicker(config.Duration(s.cfg.SweepInterval, 5*time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.store.Available() {
				continue
			}
			s.SweepStaleTasks(ctx, s.now())
		}
	}
}
