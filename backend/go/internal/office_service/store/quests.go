package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
)

// CreateQuest stores a pending quest. The task id and action are written as
// columns and mirrored into the payload.
func (s *Store) CreateQuest(ctx context.Context, n models.NewQuest) (models.Quest, bool) {
	n.LinkFromData()
	data := make(map[string]any, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	row := rowstore.Row{
		"title":       n.Title,
		"description": n.Description,
		"quest_type":  string(n.QuestType),
		"agent":       n.Agent,
		"xp_reward":   n.XPReward,
		"status":      string(models.QuestPending),
		"created_at":  s.stamp(),
	}
	if n.TaskID != nil {
		row["task_id"] = *n.TaskID
		data["task_id"] = *n.TaskID
	}
	if n.Action != "" {
		row["action"] = n.Action
		data["action"] = n.Action
	}
	row["data"] = data
	return decode[models.Quest](s.gw.InsertReturning(ctx, TableQuests, row))
}

func (s *Store) GetQuest(ctx context.Context, id int64) (models.Quest, bool) {
	return decode[models.Quest](s.gw.SelectOne(ctx, TableQuests, byID(id)))
}

// ListQuests filters by status when it is non-empty, newest first.
func (s *Store) ListQuests(ctx context.Context, status models.QuestStatus, limit int) []models.Quest {
	f := rowstore.Filter{}
	if status != "" {
		f = f.Eq("status", string(status))
	}
	rows := s.gw.Select(ctx, TableQuests, f.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.Quest](rows)
}

// CompleteQuest moves a pending quest to completed. It reports false when the
// quest is missing or was already completed.
func (s *Store) CompleteQuest(ctx context.Context, id int64, response string) bool {
	now := s.stamp()
	return s.gw.Update(ctx, TableQuests, byID(id).Eq("status", string(models.QuestPending)), rowstore.Row{
		"status":       string(models.QuestCompleted),
		"response":     response,
		"completed_at": now,
	}) > 0
}

// UserActionQuests lists the user-action quests of a scheduled task in id order.
func (s *Store) UserActionQuests(ctx context.Context, taskID int64) []models.Quest {
	rows := s.gw.Select(ctx, TableQuests, rowstore.Where("task_id", taskID).
		Eq("action", models.ActionUserAction).
		OrderAsc("id").
		WithLimit(MaxListLimit))
	return decodeAll[models.Quest](rows)
}
