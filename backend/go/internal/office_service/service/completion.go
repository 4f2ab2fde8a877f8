package service

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/store"
	"context"
	"strings"
)

const (
	defaultResultTitle  = "Задача"
	reviewDescription   = "Агенты выполнили задачу. Проверь результат и оцени."
	actionPlaceholder   = "Укажи данные или напиши что готово..."
	resultPreviewRunes  = 200
	pipelineSummaryRune = 500
)

// completeCycle finalises a task cycle once the manager reports idle. The
// scheduled task is linked and marked pending_review before any quest is
// derived from the result.
func (s *OfficeService) completeCycle(ctx context.Context, taskID int64, p models.CallbackPayload, results []models.WorkerResult) {
	title := p.Title
	if title == "" {
		title = s.cycleTitle(ctx, taskID)
	}
	result := models.BuildResult(title, p.Message, results, p.UserActions)
	combined := result.JSON()

	if taskID > 0 {
		s.store.MarkPipelineTask(ctx, taskID, models.PipelineDone, models.Truncate(result.Summary, pipelineSummaryRune))
	}

	task, linked := s.linkResult(ctx, taskID, combined)
	s.createResultQuests(ctx, task, linked, result)
	if linked {
		s.linkIdea(ctx, task.Title, combined)
	}
	s.broadcast(models.TasksUpdateEvent())
}

// cycleTitle is the content of the pipeline task, used when the manager did
// not name the result.
func (s *OfficeService) cycleTitle(ctx context.Context, taskID int64) string {
	if taskID <= 0 {
		return defaultResultTitle
	}
	t, ok := s.store.GetPipelineTask(ctx, taskID)
	if !ok || strings.TrimSpace(t.Content) == "" {
		return defaultResultTitle
	}
	return models.Truncate(strings.TrimSpace(t.Content), 100)
}

// linkResult attaches the result to the scheduled task the pipeline task was
// run for. Without an explicit link the newest in_progress task is used; that
// fallback is a heuristic and may pick the wrong task under concurrency.
func (s *OfficeService) linkResult(ctx context.Context, taskID int64, result string) (models.ScheduledTask, bool) {
	var (
		task models.ScheduledTask
		ok   bool
	)
	if taskID > 0 {
		task, ok = s.store.ScheduledByLinkedTask(ctx, taskID)
	}
	if !ok {
		task, ok = s.store.LatestInProgressScheduled(ctx)
	}
	if !ok {
		return models.ScheduledTask{}, false
	}

	done := models.ScheduledDone
	review := models.ReviewPending
	u := store.ScheduledUpdate{Status: &done, Result: &result, ReviewStatus: &review}
	if taskID > 0 && task.LinkedTaskID == nil {
		id := taskID
		u.LinkedTaskID = &id
	}
	if !s.store.UpdateScheduled(ctx, task.ID, u) {
		s.log.WithField("scheduled_id", task.ID).Warn("result not linked to scheduled task")
		return models.ScheduledTask{}, false
	}
	task.Status = done
	task.Result = result
	task.ReviewStatus = review

	s.broadcast(models.TaskCompletedEvent(task, models.Truncate(result, resultPreviewRunes)))
	s.broadcast(models.TasksUpdateEvent())
	return task, true
}

// createResultQuests derives the review quest and the user-action quests.
func (s *OfficeService) createResultQuests(ctx context.Context, task models.ScheduledTask, linked bool, result models.StructuredResult) {
	title := result.Title
	if title == "" {
		title = defaultResultTitle
	}
	var taskID *int64
	if linked {
		id := task.ID
		taskID = &id
	}
	description := result.Summary
	if description == "" {
		description = reviewDescription
	}

	s.publishQuest(ctx, models.NewQuest{
		Title:       "Проверь: " + models.Truncate(title, 60),
		Description: description,
		QuestType:   models.QuestApprove,
		Agent:       models.ManagerKey,
		XPReward:    15,
		TaskID:      taskID,
		Action:      models.ActionReview,
		Data:        map[string]any{"task_id": optionalID(taskID), "action": models.ActionReview},
	})

	items := models.ActionItems(result.UserActions, s.cfg.ActionKeywords, s.cfg.MaxActionQuests)
	for i, item := range items {
		if item.Text == "" {
			continue
		}
		text := models.Truncate(item.Text, 80)
		s.publishQuest(ctx, models.NewQuest{
			Title:       text,
			Description: "Для задачи: " + models.Truncate(title, 60),
			QuestType:   models.QuestInfo,
			Agent:       models.ManagerKey,
			XPReward:    models.DefaultQuestXP,
			TaskID:      taskID,
			Action:      models.ActionUserAction,
			Data: map[string]any{
				"task_id":           optionalID(taskID),
				"action":            models.ActionUserAction,
				"action_index":      i,
				"total_actions":     len(result.UserActions),
				"input_required":    true,
				"input_label":       text,
				"input_placeholder": actionPlaceholder,
			},
		})
	}
}

// linkIdea marks the first recent idea whose text overlaps the task title as
// done. Matching compares 20-rune prefixes of the lower-cased texts.
func (s *OfficeService) linkIdea(ctx context.Context, taskTitle, result string) {
	tt := models.Truncate(strings.ToLower(taskTitle), 50)
	for _, idea := range s.store.RecentLinkableIdeas(ctx, 5) {
		ic := models.Truncate(strings.ToLower(idea.Content), 50)
		if strings.Contains(tt, models.Truncate(ic, 20)) || strings.Contains(ic, models.Truncate(tt, 20)) {
			done := models.IdeaDone
			s.store.UpdateIdea(ctx, idea.ID, store.IdeaUpdate{Status: &done, Result: &result})
			s.broadcast(models.IdeasUpdateEvent(s.store.ListIdeas(ctx, 50)))
			return
		}
	}
}

func optionalID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
