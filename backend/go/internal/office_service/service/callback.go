package service

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/state"
	"context"
)

const (
	diaryStatusChange    = "status_change"
	defaultTaskCompleted = "Команда завершила работу."
)

// HandleCallback ingests one status event from the workflow engine. The agent
// state update and its broadcast happen before it returns; the remaining
// steps are independent and run in the background where they touch the
// store. It reports whether the agent is catalogued.
func (s *OfficeService) HandleCallback(ctx context.Context, p models.CallbackPayload) bool {
	if !s.state.Known(p.Agent) {
		s.metrics.Callback("unknown", string(p.Status))
		s.log.WithField("agent", p.Agent).Debug("callback for unknown agent dropped")
		return false
	}
	s.metrics.Callback(p.Agent, string(p.Status))
	taskID := s.cycles.resolve(p.TaskID)

	applied, _ := s.state.Apply(p.Agent, state.Delta{
		Status:   p.Status,
		Task:     p.Task,
		Progress: p.Progress,
		Message:  p.Message,
	}, s.broadcast)
	if applied.Chat != nil {
		s.store.SaveChatMessage(ctx, *applied.Chat)
	}
	s.notifyCallback(ctx, p, applied.Agent.AgentDef)

	if p.Message != "" {
		s.store.AddDiaryEntry(ctx, p.Agent, diaryStatusChange, p.Message)
	}
	if len(p.LessonsLearned) > 0 {
		s.saveLessons(ctx, p.Agent, p.LessonsLearned, taskID)
	}
	if p.ErrorDetail != "" {
		s.recordAgentError(ctx, p, taskID)
	}
	if p.Status == models.AgentQuest {
		s.spawn(ctx, "callback_quest", func(ctx context.Context) {
			s.createCallbackQuest(ctx, p)
		})
	}

	if !p.IsManager() && p.Status == models.AgentDone && p.Message != "" {
		if !s.cycles.add(taskID, models.WorkerResult{Agent: p.Agent, Result: p.Message}) {
			s.log.WithField("agent", p.Agent).WithField("task_id", taskID).Debug("duplicate worker result ignored")
		}
	}
	if p.IsManager() && p.Status == models.AgentThinking {
		s.cycles.reset(taskID)
	}
	if p.IsManager() && p.Status == models.AgentIdle {
		results := s.cycles.take(taskID)
		s.log.WithField("task_id", taskID).WithField("results", len(results)).Info("manager idle, completing cycle")
		s.spawn(ctx, "complete_cycle", func(ctx context.Context) {
			s.completeCycle(ctx, taskID, p, results)
		})
	}
	return true
}

func (s *OfficeService) notifyCallback(ctx context.Context, p models.CallbackPayload, def models.AgentDef) {
	switch {
	case p.IsManager() && p.Status == models.AgentIdle:
		summary := p.Message
		if summary == "" {
			summary = defaultTaskCompleted
		}
		s.notifier.TaskCompleted(ctx, summary)
	case p.IsManager() && p.Status == models.AgentThinking && p.Message != "":
		s.notifier.ManagerPlan(ctx, p.Message)
	case !p.IsManager() && p.Status == models.AgentWorking && p.Task != nil && *p.Task != "":
		s.notifier.WorkerStarted(ctx, def, *p.Task)
	}
}

func (s *OfficeService) saveLessons(ctx context.Context, agent string, lessons []string, taskID int64) {
	s.spawn(ctx, "save_lessons", func(ctx context.Context) {
		for _, lesson := range lessons {
			m := models.AgentMemory{
				Agent:      agent,
				MemoryType: models.MemoryLesson,
				Content:    lesson,
				Importance: 6,
				Tags:       []string{"auto_learned"},
			}
			if taskID > 0 {
				id := taskID
				m.SourceTaskID = &id
			}
			if _, ok := s.store.SaveMemory(ctx, m); !ok {
				s.log.WithField("agent", agent).Warn("lesson not saved")
			}
		}
	})
}

func (s *OfficeService) recordAgentError(ctx context.Context, p models.CallbackPayload, taskID int64) {
	s.spawn(ctx, "record_error", func(ctx context.Context) {
		e := models.AgentError{Agent: p.Agent, ErrorType: p.ErrorType, ErrorDetail: p.ErrorDetail}
		if taskID > 0 {
			id := taskID
			e.TaskID = &id
		}
		saved, ok := s.store.SaveError(ctx, e)
		if !ok {
			return
		}
		if _, err := s.ReflectError(ctx, saved.ID); err != nil {
			s.log.WithErr(err).WithField("error_id", saved.ID).Debug("automatic reflection skipped")
		}
	})
}

func (s *OfficeService) createCallbackQuest(ctx context.Context, p models.CallbackPayload) {
	title := p.QuestTitle
	if title == "" && p.Task != nil {
		title = *p.Task
	}
	if title == "" {
		title = "Quest"
	}
	qt := models.QuestType(p.QuestType)
	if !qt.Valid() {
		qt = models.QuestInfo
	}
	s.publishQuest(ctx, models.NewQuest{
		Title:       title,
		Description: p.Message,
		QuestType:   qt,
		Agent:       p.Agent,
		XPReward:    p.XPReward,
		Data:        p.QuestData,
	})
}

// publishQuest stores a quest and announces it. It reports false when the
// store did not accept it.
func (s *OfficeService) publishQuest(ctx context.Context, n models.NewQuest) (models.Quest, bool) {
	q, ok := s.store.CreateQuest(ctx, n)
	if !ok {
		return q, false
	}
	s.metrics.QuestCreated(string(q.QuestType))
	s.broadcast(models.QuestCreatedEvent(q))
	s.notifier.QuestCreated(ctx, q)
	return q, true
}
