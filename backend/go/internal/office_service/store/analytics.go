package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
	"math"
	"time"
)

// analyticsRowCap bounds each aggregate query.
const analyticsRowCap = 5000

// AnalyticsOverview aggregates tasks, quests, errors and feedback created at
// or after since.
func (s *Store) AnalyticsOverview(ctx context.Context, since time.Time, days int) models.AnalyticsOverview {
	cutoff := models.FormatTime(since)
	out := models.AnalyticsOverview{
		Days:           days,
		Since:          since.UTC(),
		TasksByStatus:  map[string]int{},
		ErrorsByAgent:  map[string]int{},
		StoreAvailable: s.Available(),
	}

	tasks := s.gw.Select(ctx, TableTasks, rowstore.Filter{}.Gte("created_at", cutoff).Select("status").WithLimit(analyticsRowCap))
	for _, r := range tasks {
		status, _ := r["status"].(string)
		out.TasksByStatus[status]++
	}
	out.TasksTotal = len(tasks)
	out.ScheduledDone = s.CountDoneSince(ctx, since)

	quests := s.gw.Select(ctx, TableQuests, rowstore.Where("status", string(models.QuestCompleted)).
		Gte("completed_at", cutoff).
		Select("xp_reward").
		WithLimit(analyticsRowCap))
	for _, r := range quests {
		if n, ok := models.AsInt64(r["xp_reward"]); ok {
			out.XPEarned += int(n)
		}
	}
	out.QuestsCompleted = len(quests)

	errs := s.gw.Select(ctx, TableErrors, rowstore.Filter{}.Gte("created_at", cutoff).Select("agent").WithLimit(analyticsRowCap))
	for _, r := range errs {
		agent, _ := r["agent"].(string)
		out.ErrorsByAgent[agent]++
	}
	out.ErrorsTotal = len(errs)

	ratings := s.gw.Select(ctx, TableFeedback, rowstore.Filter{}.Gte("created_at", cutoff).Select("rating").WithLimit(analyticsRowCap))
	total := 0
	for _, r := range ratings {
		if n, ok := models.AsInt64(r["rating"]); ok {
			total += int(n)
			out.Feedbacks++
		}
	}
	if out.Feedbacks > 0 {
		out.AverageRating = math.Round(float64(total)/float64(out.Feedbacks)*100) / 100
	}
	return out
}

// ListArtifacts filters deployment artifacts by status when it is non-empty,
// newest first.
func (s *Store) ListArtifacts(ctx context.Context, status string, limit int) []models.CodeArtifact {
	f := rowstore.Filter{}
	if status != "" {
		f = f.Eq("status", status)
	}
	rows := s.gw.Select(ctx, TableArtifacts, f.
		Select("id", "task_id", "project_name", "status", "deploy_result", "created_at", "updated_at").
		OrderDesc("created_at").
		WithLimit(Limit(limit, 20)))
	return decodeAll[models.CodeArtifact](rows)
}
