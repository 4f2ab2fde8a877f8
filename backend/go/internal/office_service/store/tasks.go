package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
	"time"
)

// CreatePipelineTask records a task about to be dispatched.
func (s *Store) CreatePipelineTask(ctx context.Context, content string) (models.PipelineTask, bool) {
	row := s.gw.InsertReturning(ctx, TableTasks, rowstore.Row{
		"content":    content,
		"status":     string(models.PipelineProcessing),
		"created_at": s.stamp(),
	})
	return decode[models.PipelineTask](row)
}

func (s *Store) GetPipelineTask(ctx context.Context, id int64) (models.PipelineTask, bool) {
	return decode[models.PipelineTask](s.gw.SelectOne(ctx, TableTasks, byID(id)))
}

func (s *Store) ListPipelineTasks(ctx context.Context, limit int) []models.PipelineTask {
	rows := s.gw.Select(ctx, TableTasks, rowstore.Filter{}.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.PipelineTask](rows)
}

// MarkPipelineTask moves a processing task to a terminal status. A task that
// already finished is left as is and false is returned.
func (s *Store) MarkPipelineTask(ctx context.Context, id int64, status models.PipelineStatus, summary string) bool {
	fields := rowstore.Row{"status": string(status), "summary": summary}
	if status != models.PipelineProcessing {
		fields["finished_at"] = s.stamp()
	}
	processing := byID(id).Eq("status", string(models.PipelineProcessing))
	return s.gw.Update(ctx, TableTasks, processing, fields) > 0
}

// StalePipelineTasks lists tasks still processing that were created before cutoff.
func (s *Store) StalePipelineTasks(ctx context.Context, cutoff time.Time) []models.PipelineTask {
	rows := s.gw.Select(ctx, TableTasks, rowstore.Where("status", string(models.PipelineProcessing)).
		Lt("created_at", models.FormatTime(cutoff)).
		OrderAsc("created_at").
		WithLimit(MaxListLimit))
	return decodeAll[models.PipelineTask](rows)
}

// ScheduledUpdate lists the scheduled task fields to change; nil means keep.
type ScheduledUpdate struct {
	Status        *models.ScheduledStatus
	LinkedTaskID  *int64
	AssignedAgent *string
	Result        *string
	ClearResult   bool
	ReviewStatus  *models.ReviewStatus
}

func (u ScheduledUpdate) row(now string) rowstore.Row {
	fields := rowstore.Row{"updated_at": now}
	if u.Status != nil {
		fields["status"] = string(*u.Status)
		if *u.Status == models.ScheduledDone {
			fields["completed_at"] = now
		}
	}
	if u.LinkedTaskID != nil {
		fields["linked_task_id"] = *u.LinkedTaskID
	}
	if u.AssignedAgent != nil {
		fields["assigned_agent"] = *u.AssignedAgent
	}
	if u.Result != nil {
		fields["result"] = *u.Result
	}
	if u.ClearResult {
		fields["result"] = nil
	}
	if u.ReviewStatus != nil {
		fields["review_status"] = string(*u.ReviewStatus)
	}
	return fields
}

func (s *Store) CreateScheduled(ctx context.Context, title string, horizon models.Horizon, priority models.Priority) (models.ScheduledTask, bool) {
	row := s.gw.InsertReturning(ctx, TableScheduledTasks, rowstore.Row{
		"title":         title,
		"horizon":       string(horizon),
		"priority":      string(priority),
		"status":        string(models.ScheduledPending),
		"review_status": string(models.ReviewNone),
		"created_at":    s.stamp(),
	})
	return decode[models.ScheduledTask](row)
}

func (s *Store) GetScheduled(ctx context.Context, id int64) (models.ScheduledTask, bool) {
	return decode[models.ScheduledTask](s.gw.SelectOne(ctx, TableScheduledTasks, byID(id)))
}

// ListScheduled filters by horizon and status when they are non-empty.
func (s *Store) ListScheduled(ctx context.Context, horizon models.Horizon, status models.ScheduledStatus, limit int) []models.ScheduledTask {
	f := rowstore.Filter{}
	if horizon != "" {
		f = f.Eq("horizon", string(horizon))
	}
	if status != "" {
		f = f.Eq("status", string(status))
	}
	rows := s.gw.Select(ctx, TableScheduledTasks, f.OrderDesc("created_at").WithLimit(Limit(limit, 100)))
	return decodeAll[models.ScheduledTask](rows)
}

func (s *Store) UpdateScheduled(ctx context.Context, id int64, u ScheduledUpdate) bool {
	return s.gw.Update(ctx, TableScheduledTasks, byID(id), u.row(s.stamp())) > 0
}

// ScheduledByLinkedTask finds the scheduled task a pipeline task was run for.
func (s *Store) ScheduledByLinkedTask(ctx context.Context, taskID int64) (models.ScheduledTask, bool) {
	row := s.gw.SelectOne(ctx, TableScheduledTasks, rowstore.Where("linked_task_id", taskID).OrderDesc("created_at"))
	return decode[models.ScheduledTask](row)
}

// LatestInProgressScheduled is the fallback link target when no explicit link exists.
func (s *Store) LatestInProgressScheduled(ctx context.Context) (models.ScheduledTask, bool) {
	row := s.gw.SelectOne(ctx, TableScheduledTasks, rowstore.Where("status", string(models.ScheduledInProgress)).OrderDesc("created_at"))
	return decode[models.ScheduledTask](row)
}

// CountDoneSince counts scheduled tasks completed at or after since.
func (s *Store) CountDoneSince(ctx context.Context, since time.Time) int {
	rows := s.gw.Select(ctx, TableScheduledTasks, rowstore.Where("status", string(models.ScheduledDone)).
		Gte("completed_at", models.FormatTime(since)).
		Select("id"))
	return len(rows)
}
