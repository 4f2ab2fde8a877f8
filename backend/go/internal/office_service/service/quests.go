package service

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/store"
	"context"
	"fmt"
	"strings"
)

const (
	phase2Confirmed = "подтверждено"
	phase2StartText = "Все данные получены! Запускаю реализацию..."
	clarifyLabel    = "Введи данные, или напиши 'пропустить' / задай вопрос"
	clarifyHint     = "Данные, или опиши что непонятно..."
)

// CreateQuest validates and stores a quest requested by a client.
func (s *OfficeService) CreateQuest(ctx context.Context, n models.NewQuest) (models.Quest, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return models.Quest{}, invalid("empty title")
	}
	if n.QuestType == "" {
		n.QuestType = models.QuestInfo
	}
	if !n.QuestType.Valid() {
		return models.Quest{}, invalid("invalid quest_type %q", n.QuestType)
	}
	if n.XPReward == 0 {
		n.XPReward = models.DefaultQuestXP
	}
	if err := s.requireStore(); err != nil {
		return models.Quest{}, err
	}
	q, ok := s.publishQuest(ctx, n)
	if !ok {
		return q, ErrStoreWrite
	}
	return q, nil
}

func (s *OfficeService) ListQuests(ctx context.Context, status models.QuestStatus, limit int) ([]models.Quest, error) {
	if status != "" && status != models.QuestPending && status != models.QuestCompleted {
		return nil, invalid("invalid status %q", status)
	}
	return s.store.ListQuests(ctx, status, limit), nil
}

// CompleteQuest stores the user's response. A response to a user-action
// quest that reads like a question spawns a clarification quest; any other
// completion may start phase 2 of the task.
func (s *OfficeService) CompleteQuest(ctx context.Context, id int64, response string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	q, ok := s.store.GetQuest(ctx, id)
	if !ok {
		return ErrNotFound
	}
	if q.Status != models.QuestPending {
		return fmt.Errorf("%w: quest already %s", ErrInvalidTransition, q.Status)
	}
	if !s.store.CompleteQuest(ctx, id, response) {
		return ErrStoreWrite
	}
	q.Status = models.QuestCompleted
	q.Response = response

	if q.Action == models.ActionUserAction && s.needsClarification(response) {
		s.spawn(ctx, "clarification_quest", func(ctx context.Context) {
			s.createClarificationQuest(ctx, q, response)
		})
		return nil
	}
	if q.Action == models.ActionUserAction && q.TaskID != nil {
		taskID := *q.TaskID
		s.spawn(ctx, "phase2_check", func(ctx context.Context) {
			s.checkPhase2(ctx, taskID)
		})
	}
	return nil
}

// needsClarification reports whether response contains one of the
// configured clarification keywords.
func (s *OfficeService) needsClarification(response string) bool {
	r := strings.ToLower(strings.TrimSpace(response))
	if r == "" {
		return false
	}
	return models.ContainsAny(r, s.cfg.ClarificationKeywords)
}

// createClarificationQuest answers a question with a new quest. The original
// quest stays completed so the conversation remains auditable.
func (s *OfficeService) createClarificationQuest(ctx context.Context, original models.Quest, question string) {
	data := make(map[string]any, len(original.Data)+6)
	for k, v := range original.Data {
		data[k] = v
	}
	data["action"] = models.ActionUserAction
	data["is_clarification"] = true
	data["original_question"] = question
	data["input_required"] = true
	data["input_label"] = clarifyLabel
	data["input_placeholder"] = clarifyHint

	description := fmt.Sprintf("Ты спросил: %q\n\nЧто нужно: %s\n\n"+
		"Если у тебя нет этого, напиши 'пропустить' или 'нет доступа'. "+
		"Если непонятно что именно, опиши свою ситуацию, и мы адаптируем план.", question, original.Title)

	if _, ok := s.publishQuest(ctx, models.NewQuest{
		Title:       "Уточнение: " + models.Truncate(original.Title, 60),
		Description: description,
		QuestType:   models.QuestInfo,
		Agent:       models.ManagerKey,
		XPReward:    5,
		TaskID:      original.TaskID,
		Action:      models.ActionUserAction,
		Data:        data,
	}); !ok {
		s.log.WithField("quest_id", original.ID).Warn("clarification quest not created")
	}
}

// checkPhase2 forwards the implementation task once every user-action quest
// of taskID is completed. Each task enters phase 2 at most once.
func (s *OfficeService) checkPhase2(ctx context.Context, taskID int64) {
	quests := s.store.UserActionQuests(ctx, taskID)
	if len(quests) == 0 {
		return
	}
	for _, q := range quests {
		if q.Status != models.QuestCompleted {
			return
		}
	}
	if !s.claimPhase2(taskID) {
		return
	}

	var inputs strings.Builder
	for _, q := range quests {
		resp := strings.TrimSpace(q.Response)
		if resp == "" {
			resp = phase2Confirmed
		}
		fmt.Fprintf(&inputs, "- %s: %s\n", q.InputLabel(), resp)
	}
	title := defaultResultTitle
	if t, ok := s.store.GetScheduled(ctx, taskID); ok && t.Title != "" {
		title = t.Title
	}
	text := "ФАЗА 2 — РЕАЛИЗАЦИЯ. Пользователь предоставил все данные.\n\n" +
		"Оригинальная задача: " + title + "\n\n" +
		"Данные от пользователя:\n" + inputs.String() + "\n" +
		"Теперь сделай реальный продукт. Не план, а готовый результат: код, тексты, конфиги для запуска."

	s.broadcast(models.AgentUpdateEvent(models.ManagerKey, models.AgentThinking, phase2StartText))
	pipelineID, ok := s.Forward(ctx, text)
	if !ok {
		if !s.canDispatch() {
			s.releasePhase2(taskID)
		}
		return
	}
	inProgress := models.ScheduledInProgress
	s.store.UpdateScheduled(ctx, taskID, store.ScheduledUpdate{Status: &inProgress, LinkedTaskID: &pipelineID})
	s.broadcast(models.TasksUpdateEvent())
}

func (s *OfficeService) claimPhase2(taskID int64) bool {
	s.phase2Mu.Lock()
	defer s.phase2Mu.Unlock()
	if s.phase2[taskID] {
		return false
	}
	s.phase2[taskID] = true
	return true
}

// releasePhase2 lets a later quest completion retry phase 2.
func (s *OfficeService) releasePhase2(taskID int64) {
	s.phase2Mu.Lock()
	defer s.phase2Mu.Unlock()
	delete(s.phase2, taskID)
}
