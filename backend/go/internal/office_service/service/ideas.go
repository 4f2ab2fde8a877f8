package service

import (
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/store"
	"context"
	"strings"
)

const (
	ideaPlanSystem  = "Ты менеджер команды AI-агентов. Кратко опиши суть идеи и составь пошаговый план выполнения через агентов. Отвечай по-русски."
	ideaPlanMissing = "⚠️ LLM не настроен, план не создан."
	ideaPlanFailed  = "Не удалось создать план."
)

// CreateIdea stores an idea and plans it in the background.
func (s *OfficeService) CreateIdea(ctx context.Context, content string) (models.Idea, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Idea{}, invalid("empty content")
	}
	if err := s.requireStore(); err != nil {
		return models.Idea{}, err
	}
	idea, ok := s.store.CreateIdea(ctx, content)
	if !ok {
		return idea, ErrStoreWrite
	}
	s.publishIdeas(ctx)
	s.spawn(ctx, "plan_idea", func(ctx context.Context) {
		s.planIdea(ctx, idea)
	})
	return idea, nil
}

func (s *OfficeService) ListIdeas(ctx context.Context) []models.Idea {
	return s.store.ListIdeas(ctx, 50)
}

// StartIdea activates an idea and forwards its content as a task.
func (s *OfficeService) StartIdea(ctx context.Context, id int64) (models.Idea, error) {
	if err := s.requireStore(); err != nil {
		return models.Idea{}, err
	}
	idea, ok := s.store.GetIdea(ctx, id)
	if !ok {
		return idea, ErrNotFound
	}
	active := models.IdeaActive
	if !s.store.UpdateIdea(ctx, id, store.IdeaUpdate{Status: &active}) {
		return idea, ErrStoreWrite
	}
	idea.Status = active
	s.publishIdeas(ctx)
	s.Forward(ctx, idea.Content)
	return idea, nil
}

func (s *OfficeService) planIdea(ctx context.Context, idea models.Idea) {
	plan := ideaPlanMissing
	if s.llm != nil {
		text, err := s.llm.Complete(ctx, llm.Prompt(ideaPlanSystem, idea.Content, 600))
		switch {
		case err != nil:
			s.log.WithErr(err).WithField("idea_id", idea.ID).Warn("idea planning failed")
			plan = "Ошибка при создании плана: " + models.Truncate(err.Error(), 200)
		case strings.TrimSpace(text) == "":
			plan = ideaPlanFailed
		default:
			plan = text
		}
	}
	planned := models.IdeaPlanned
	s.store.UpdateIdea(ctx, idea.ID, store.IdeaUpdate{Status: &planned, Plan: &plan})
	s.publishIdeas(ctx)
}

func (s *OfficeService) publishIdeas(ctx context.Context) {
	s.broadcast(models.IdeasUpdateEvent(s.store.ListIdeas(ctx, 50)))
}
