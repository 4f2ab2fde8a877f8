package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
)

// IdeaUpdate lists the idea fields to change; nil means keep.
type IdeaUpdate struct {
	Status *models.IdeaStatus
	Plan   *string
	Result *string
}

func (s *Store) CreateIdea(ctx context.Context, content string) (models.Idea, bool) {
	row := s.gw.InsertReturning(ctx, TableIdeas, rowstore.Row{
		"content":    content,
		"status":     string(models.IdeaPlanning),
		"created_at": s.stamp(),
	})
	return decode[models.Idea](row)
}

func (s *Store) GetIdea(ctx context.Context, id int64) (models.Idea, bool) {
	return decode[models.Idea](s.gw.SelectOne(ctx, TableIdeas, byID(id)))
}

func (s *Store) ListIdeas(ctx context.Context, limit int) []models.Idea {
	rows := s.gw.Select(ctx, TableIdeas, rowstore.Filter{}.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.Idea](rows)
}

func (s *Store) UpdateIdea(ctx context.Context, id int64, u IdeaUpdate) bool {
	fields := rowstore.Row{}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
	}
	if u.Plan != nil {
		fields["plan"] = *u.Plan
	}
	if u.Result != nil {
		fields["result"] = *u.Result
	}
	if len(fields) == 0 {
		return false
	}
	return s.gw.Update(ctx, TableIdeas, byID(id), fields) > 0
}

// RecentLinkableIdeas lists the newest ideas a finished task may belong to.
func (s *Store) RecentLinkableIdeas(ctx context.Context, limit int) []models.Idea {
	rows := s.gw.Select(ctx, TableIdeas, rowstore.Filter{}.
		In("status", string(models.IdeaActive), string(models.IdeaPlanned), string(models.IdeaPlanning), string(models.IdeaDone)).
		OrderDesc("created_at").
		WithLimit(Limit(limit, 5)))
	return decodeAll[models.Idea](rows)
}
