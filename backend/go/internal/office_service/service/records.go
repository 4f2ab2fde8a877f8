package service

import (
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/store"
	"context"
	"fmt"
	"strings"
)

const (
	noLessonText     = "Нет конкретного урока."
	reflectionPrompt = "Агент: %s\nТип ошибки: %s\nДетали: %s\n\n" +
		"Проанализируй ошибку. Ответь строго в формате:\n" +
		"REFLECTION: [почему произошла ошибка, 1-2 предложения]\n" +
		"LESSON: [что нужно делать иначе в будущем, 1 предложение]"
	reflectAllLimit = 10
)

func (s *OfficeService) ListMemory(ctx context.Context, agent, memoryType string, limit int) []models.AgentMemory {
	return s.store.ListMemory(ctx, agent, memoryType, limit)
}

// SaveMemory validates and stores a memory entry.
func (s *OfficeService) SaveMemory(ctx context.Context, m models.AgentMemory) (models.AgentMemory, error) {
	m.Agent = strings.TrimSpace(m.Agent)
	m.MemoryType = strings.TrimSpace(m.MemoryType)
	m.Content = strings.TrimSpace(m.Content)
	if m.Agent == "" || m.MemoryType == "" || m.Content == "" {
		return m, invalid("agent, memory_type, content required")
	}
	if err := s.requireStore(); err != nil {
		return m, err
	}
	saved, ok := s.store.SaveMemory(ctx, m)
	if !ok {
		return saved, ErrStoreWrite
	}
	return saved, nil
}

func (s *OfficeService) DeleteMemory(ctx context.Context, id int64) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if !s.store.DeleteMemory(ctx, id) {
		return ErrNotFound
	}
	return nil
}

func (s *OfficeService) MemoryContext(ctx context.Context, agent string, limit int) []models.AgentMemory {
	return s.store.MemoryContext(ctx, agent, min(store.Limit(limit, 20), 50))
}

// EcosystemMap returns the current infrastructure description, if any.
func (s *OfficeService) EcosystemMap(ctx context.Context) (models.AgentMemory, bool, error) {
	if err := s.requireStore(); err != nil {
		return models.AgentMemory{}, false, err
	}
	m, ok := s.store.EcosystemMap(ctx)
	return m, ok, nil
}

func (s *OfficeService) UpdateEcosystemMap(ctx context.Context, content string) (models.AgentMemory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.AgentMemory{}, invalid("content required")
	}
	if err := s.requireStore(); err != nil {
		return models.AgentMemory{}, err
	}
	m, ok := s.store.ReplaceEcosystemMap(ctx, content)
	if !ok {
		return m, ErrStoreWrite
	}
	return m, nil
}

func (s *OfficeService) ListProfile(ctx context.Context) []models.ProfileEntry {
	return s.store.ListProfile(ctx, "")
}

func (s *OfficeService) UpsertProfile(ctx context.Context, category, key, value, source string) (models.ProfileEntry, error) {
	category, key, value = strings.TrimSpace(category), strings.TrimSpace(key), strings.TrimSpace(value)
	if category == "" || key == "" || value == "" {
		return models.ProfileEntry{}, invalid("category, key, value required")
	}
	if err := s.requireStore(); err != nil {
		return models.ProfileEntry{}, err
	}
	e, ok := s.store.UpsertProfile(ctx, category, key, value, source)
	if !ok {
		return e, ErrStoreWrite
	}
	return e, nil
}

func (s *OfficeService) DeleteProfile(ctx context.Context, id int64) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if !s.store.DeleteProfile(ctx, id) {
		return ErrNotFound
	}
	return nil
}

func (s *OfficeService) ListFeedback(ctx context.Context, agent string, limit int) []models.TaskFeedback {
	return s.store.ListFeedback(ctx, agent, 0, limit)
}

// SaveFeedback stores agent-level feedback not tied to a review.
func (s *OfficeService) SaveFeedback(ctx context.Context, fb models.TaskFeedback) (models.TaskFeedback, error) {
	fb.Agent = strings.TrimSpace(fb.Agent)
	if fb.TaskID <= 0 || fb.Agent == "" || fb.Rating == 0 {
		return fb, invalid("task_id, agent, rating required")
	}
	if err := s.requireStore(); err != nil {
		return fb, err
	}
	saved, ok := s.store.SaveFeedback(ctx, fb)
	if !ok {
		return saved, ErrStoreWrite
	}
	return saved, nil
}

func (s *OfficeService) ListDiary(ctx context.Context, agent string, limit int) []models.DiaryEntry {
	return s.store.ListDiary(ctx, agent, limit)
}

func (s *OfficeService) ListErrors(ctx context.Context, agent string, limit int) []models.AgentError {
	return s.store.ListErrors(ctx, agent, limit)
}

// SaveError records an error reported by a client.
func (s *OfficeService) SaveError(ctx context.Context, e models.AgentError) (models.AgentError, error) {
	e.Agent = strings.TrimSpace(e.Agent)
	e.ErrorType = strings.TrimSpace(e.ErrorType)
	e.ErrorDetail = strings.TrimSpace(e.ErrorDetail)
	if e.Agent == "" || e.ErrorType == "" || e.ErrorDetail == "" {
		return e, invalid("agent, error_type, error_detail required")
	}
	if err := s.requireStore(); err != nil {
		return e, err
	}
	saved, ok := s.store.SaveError(ctx, e)
	if !ok {
		return saved, ErrStoreWrite
	}
	return saved, nil
}

// Reflection is the analysis attached to an error.
type Reflection struct {
	Reflection       string `json:"reflection"`
	Lesson           string `json:"lesson"`
	AlreadyReflected bool   `json:"already_reflected,omitempty"`
}

// ReflectError asks the LLM why an error happened and stores the lesson as
// agent memory. An error is reflected at most once.
func (s *OfficeService) ReflectError(ctx context.Context, id int64) (Reflection, error) {
	if err := s.requireStore(); err != nil {
		return Reflection{}, err
	}
	e, ok := s.store.GetError(ctx, id)
	if !ok {
		return Reflection{}, ErrNotFound
	}
	if e.Reflection != "" {
		return Reflection{Reflection: e.Reflection, Lesson: e.Lesson, AlreadyReflected: true}, nil
	}
	if s.llm == nil {
		return Reflection{}, llm.ErrNotConfigured
	}
	text, err := s.llm.Complete(ctx, llm.Prompt("", fmt.Sprintf(reflectionPrompt, e.Agent, e.ErrorType, e.ErrorDetail), 300))
	if err != nil {
		return Reflection{}, fmt.Errorf("reflect error %d: %w", id, err)
	}
	r := parseReflection(text)
	s.store.UpdateReflection(ctx, id, r.Reflection, r.Lesson)
	s.store.SaveMemory(ctx, models.AgentMemory{
		Agent:        e.Agent,
		MemoryType:   models.MemoryLesson,
		Content:      r.Lesson,
		SourceTaskID: e.TaskID,
		Importance:   7,
		Tags:         []string{"error_reflection", e.ErrorType},
	})
	return r, nil
}

// parseReflection reads the REFLECTION: and LESSON: lines of a completion.
func parseReflection(text string) Reflection {
	var r Reflection
	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		switch strings.ToUpper(key) {
		case "REFLECTION":
			r.Reflection = strings.TrimSpace(value)
		case "LESSON":
			r.Lesson = strings.TrimSpace(value)
		}
	}
	if r.Reflection == "" {
		r.Reflection = models.Truncate(strings.TrimSpace(text), 200)
	}
	if r.Lesson == "" {
		r.Lesson = noLessonText
	}
	return r
}

// ReflectAll schedules reflection of the newest unreflected errors and
// returns how many were scheduled.
func (s *OfficeService) ReflectAll(ctx context.Context) (int, error) {
	if err := s.requireStore(); err != nil {
		return 0, err
	}
	count := 0
	for _, e := range s.store.ListErrors(ctx, "", 50) {
		if e.Reflection != "" {
			continue
		}
		if count == reflectAllLimit {
			break
		}
		id := e.ID
		s.spawn(ctx, "reflect_error", func(ctx context.Context) {
			if _, err := s.ReflectError(ctx, id); err != nil {
				s.log.WithErr(err).WithField("error_id", id).Warn("reflection failed")
			}
		})
		count++
	}
	return count, nil
}

func (s *OfficeService) Briefing(ctx context.Context) models.Briefing {
	return s.store.Briefing(ctx)
}

// AgentStats returns the record counts of every catalogued agent.
func (s *OfficeService) AgentStats(ctx context.Context) []models.AgentStats {
	agents := s.state.Snapshot()
	out := make([]models.AgentStats, 0, len(agents))
	for _, a := range agents {
		out = append(out, s.store.AgentStats(ctx, a.Key, a.Status))
	}
	return out
}

// AnalyticsOverview summarises the last days days, 7 by default and at most 90.
func (s *OfficeService) AnalyticsOverview(ctx context.Context, days int) models.AnalyticsOverview {
	if days <= 0 {
		days = 7
	}
	days = min(days, 90)
	since := s.now().AddDate(0, 0, -days)
	return s.store.AnalyticsOverview(ctx, since, days)
}

func (s *OfficeService) ListArtifacts(ctx context.Context, status string, limit int) []models.CodeArtifact {
	return s.store.ListArtifacts(ctx, strings.TrimSpace(status), min(store.Limit(limit, 20), 50))
}

func (s *OfficeService) DirectMessages(ctx context.Context, agent string, limit int) ([]models.StoredMessage, error) {
	if strings.TrimSpace(agent) == "" {
		return nil, invalid("agent required")
	}
	return s.store.DirectMessages(ctx, agent, min(store.Limit(limit, 30), 100)), nil
}

// DirectChat answers a user message on behalf of one agent, using the
// agent's memories and the recent direct conversation as context.
func (s *OfficeService) DirectChat(ctx context.Context, agent, message string) (string, error) {
	agent, message = strings.TrimSpace(agent), strings.TrimSpace(message)
	if agent == "" || message == "" {
		return "", invalid("agent and message required")
	}
	def, ok := s.state.Agent(agent)
	if !ok {
		return "", invalid("unknown agent: %s", agent)
	}
	if s.llm == nil {
		return "", llm.ErrNotConfigured
	}

	memories := s.store.MemoryContext(ctx, agent, 20)
	history := s.store.DirectMessages(ctx, agent, 20)

	var sys strings.Builder
	fmt.Fprintf(&sys, "Ты %s (%s), агент команды Agent Office.\n", def.Name, def.Role)
	if m, ok := s.store.EcosystemMap(ctx); ok {
		sys.WriteString(m.Content + "\n")
	}
	sys.WriteString("Твоя память и уроки:\n")
	if len(memories) == 0 {
		sys.WriteString("Нет записей.\n")
	}
	for _, m := range memories {
		fmt.Fprintf(&sys, "- [%s] %s\n", m.MemoryType, m.Content)
	}
	sys.WriteString("\nОтвечай по-русски, кратко и по существу.")

	req := llm.CompletionRequest{System: sys.String(), MaxTokens: 1024, Temperature: 0.7}
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == models.RoleDirectAgent {
			role = llm.RoleAssistant
		}
		req.Messages = append(req.Messages, llm.Message{Role: role, Content: h.Content})
	}
	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: message})

	s.store.SaveDirectMessage(ctx, agent, models.RoleDirectUser, message)
	reply, err := s.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("direct chat with %s: %w", agent, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("direct chat with %s: empty reply", agent)
	}
	s.store.SaveDirectMessage(ctx, agent, models.RoleDirectAgent, reply)
	return reply, nil
}
