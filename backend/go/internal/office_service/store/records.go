package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
	"time"
)

// SaveMemory stores a memory entry. Importance defaults to 5.
func (s *Store) SaveMemory(ctx context.Context, m models.AgentMemory) (models.AgentMemory, bool) {
	if m.Importance == 0 {
		m.Importance = 5
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	row := rowstore.Row{
		"agent":       m.Agent,
		"memory_type": m.MemoryType,
		"content":     m.Content,
		"importance":  m.Importance,
		"tags":        m.Tags,
		"created_at":  s.stamp(),
	}
	if m.SourceTaskID != nil {
		row["source_task_id"] = *m.SourceTaskID
	}
	return decode[models.AgentMemory](s.gw.InsertReturning(ctx, TableMemory, row))
}

// ListMemory filters by agent and memory type when they are non-empty.
func (s *Store) ListMemory(ctx context.Context, agent, memoryType string, limit int) []models.AgentMemory {
	f := rowstore.Filter{}
	if agent != "" {
		f = f.Eq("agent", agent)
	}
	if memoryType != "" {
		f = f.Eq("memory_type", memoryType)
	}
	rows := s.gw.Select(ctx, TableMemory, f.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.AgentMemory](rows)
}

func (s *Store) DeleteMemory(ctx context.Context, id int64) bool {
	return s.gw.Delete(ctx, TableMemory, byID(id)) > 0
}

// MemoryContext returns the most important memories of agent together with
// the shared system memories.
func (s *Store) MemoryContext(ctx context.Context, agent string, limit int) []models.AgentMemory {
	rows := s.gw.Select(ctx, TableMemory, rowstore.Filter{}.
		In("agent", agent, models.SystemAgent).
		OrderDesc("importance").
		OrderDesc("created_at").
		WithLimit(Limit(limit, 20)))
	return decodeAll[models.AgentMemory](rows)
}

// EcosystemMap returns the latest infrastructure description.
func (s *Store) EcosystemMap(ctx context.Context) (models.AgentMemory, bool) {
	row := s.gw.SelectOne(ctx, TableMemory, rowstore.Where("agent", models.SystemAgent).
		Eq("memory_type", models.MemoryEcosystemMap).
		OrderDesc("created_at"))
	return decode[models.AgentMemory](row)
}

// ReplaceEcosystemMap drops previous descriptions and stores content.
func (s *Store) ReplaceEcosystemMap(ctx context.Context, content string) (models.AgentMemory, bool) {
	s.gw.Delete(ctx, TableMemory, rowstore.Where("agent", models.SystemAgent).Eq("memory_type", models.MemoryEcosystemMap))
	return s.SaveMemory(ctx, models.AgentMemory{
		Agent:      models.SystemAgent,
		MemoryType: models.MemoryEcosystemMap,
		Content:    content,
		Importance: 10,
		Tags:       []string{"ecosystem", "infrastructure"},
	})
}

func (s *Store) SaveError(ctx context.Context, e models.AgentError) (models.AgentError, bool) {
	if e.ErrorType == "" {
		e.ErrorType = "runtime"
	}
	row := rowstore.Row{
		"agent":        e.Agent,
		"error_type":   e.ErrorType,
		"error_detail": e.ErrorDetail,
		"created_at":   s.stamp(),
	}
	if e.TaskID != nil {
		row["task_id"] = *e.TaskID
	}
	return decode[models.AgentError](s.gw.InsertReturning(ctx, TableErrors, row))
}

func (s *Store) GetError(ctx context.Context, id int64) (models.AgentError, bool) {
	return decode[models.AgentError](s.gw.SelectOne(ctx, TableErrors, byID(id)))
}

// ListErrors filters by agent when it is non-empty, newest first.
func (s *Store) ListErrors(ctx context.Context, agent string, limit int) []models.AgentError {
	f := rowstore.Filter{}
	if agent != "" {
		f = f.Eq("agent", agent)
	}
	rows := s.gw.Select(ctx, TableErrors, f.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.AgentError](rows)
}

func (s *Store) UpdateReflection(ctx context.Context, id int64, reflection, lesson string) bool {
	return s.gw.Update(ctx, TableErrors, byID(id), rowstore.Row{
		"reflection": reflection,
		"lesson":     lesson,
	}) > 0
}

// ErrorsSince lists errors created at or after cutoff.
func (s *Store) ErrorsSince(ctx context.Context, cutoff time.Time) []models.AgentError {
	rows := s.gw.Select(ctx, TableErrors, rowstore.Filter{}.
		Gte("created_at", models.FormatTime(cutoff)).
		OrderDesc("created_at").
		WithLimit(MaxListLimit))
	return decodeAll[models.AgentError](rows)
}

func (s *Store) SaveFeedback(ctx context.Context, fb models.TaskFeedback) (models.TaskFeedback, bool) {
	row := s.gw.InsertReturning(ctx, TableFeedback, rowstore.Row{
		"task_id":    fb.TaskID,
		"agent":      fb.Agent,
		"rating":     fb.Rating,
		"comment":    fb.Comment,
		"created_at": s.stamp(),
	})
	return decode[models.TaskFeedback](row)
}

// ListFeedback filters by agent and task when they are set, newest first.
func (s *Store) ListFeedback(ctx context.Context, agent string, taskID int64, limit int) []models.TaskFeedback {
	f := rowstore.Filter{}
	if agent != "" {
		f = f.Eq("agent", agent)
	}
	if taskID > 0 {
		f = f.Eq("task_id", taskID)
	}
	rows := s.gw.Select(ctx, TableFeedback, f.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.TaskFeedback](rows)
}

// AddDiaryEntry writes a diary line in the background.
func (s *Store) AddDiaryEntry(ctx context.Context, agent, entryType, content string) {
	s.gw.Insert(ctx, TableDiary, rowstore.Row{
		"agent":      agent,
		"entry_type": entryType,
		"content":    content,
		"created_at": s.stamp(),
	})
}

func (s *Store) ListDiary(ctx context.Context, agent string, limit int) []models.DiaryEntry {
	f := rowstore.Filter{}
	if agent != "" {
		f = f.Eq("agent", agent)
	}
	rows := s.gw.Select(ctx, TableDiary, f.OrderDesc("created_at").WithLimit(Limit(limit, 50)))
	return decodeAll[models.DiaryEntry](rows)
}

// UpsertProfile writes a profile entry keyed by (category, key).
func (s *Store) UpsertProfile(ctx context.Context, category, key, value, source string) (models.ProfileEntry, bool) {
	if source == "" {
		source = "explicit"
	}
	row := s.gw.Upsert(ctx, TableProfile, rowstore.Row{
		"category":   category,
		"key":        key,
		"value":      value,
		"source":     source,
		"updated_at": s.stamp(),
	}, "category", "key")
	return decode[models.ProfileEntry](row)
}

// ListProfile filters by category when it is non-empty.
func (s *Store) ListProfile(ctx context.Context, category string) []models.ProfileEntry {
	f := rowstore.Filter{}
	if category != "" {
		f = f.Eq("category", category)
	}
	rows := s.gw.Select(ctx, TableProfile, f.OrderAsc("category").OrderAsc("key").WithLimit(MaxListLimit))
	return decodeAll[models.ProfileEntry](rows)
}

func (s *Store) DeleteProfile(ctx context.Context, id int64) bool {
	return s.gw.Delete(ctx, TableProfile, byID(id)) > 0
}
