package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"encoding/json"
	"strings"
	"time"
)

// Logical tables.
const (
	TableMessages       = "messages"
	TableTasks          = "tasks"
	TableScheduledTasks = "scheduled_tasks"
	TableIdeas          = "ideas"
	TableQuests         = "quests"
	TableMemory         = "agent_memory"
	TableErrors         = "agent_errors"
	TableFeedback       = "task_feedback"
	TableDiary          = "diary"
	TableProfile        = "user_profile"
	TableArtifacts      = "code_artifacts"
)

// MaxListLimit caps every list query.
const MaxListLimit = 200

// Store gives typed access to the row store. Every method degrades to a zero
// value when the gateway has no backend or the call fails.
type Store struct {
	gw  *rowstore.Gateway
	now func() time.Time
}

func New(gw *rowstore.Gateway) *Store {
	return &Store{gw: gw, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Available reports whether writes can be persisted at all.
func (s *Store) Available() bool {
	return s.gw.Available()
}

// Gateway exposes the underlying gateway for health checks.
func (s *Store) Gateway() *rowstore.Gateway {
	return s.gw
}

func (s *Store) stamp() string {
	return models.FormatTime(s.now())
}

// Limit clamps a caller supplied limit to 1..MaxListLimit, using fallback
// for non-positive values.
func Limit(n, fallback int) int {
	if n <= 0 {
		n = fallback
	}
	return min(n, MaxListLimit)
}

func decode[T any](row rowstore.Row) (T, bool) {
	var out T
	if row == nil {
		return out, false
	}
	b, err := json.Marshal(row)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}

func decodeAll[T any](rows []rowstore.Row) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if v, ok := decode[T](r); ok {
			out = append(out, v)
		}
	}
	return out
}

func reverse[T any](s []T) []T {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

// likeFragment strips wildcard characters so a fragment matches literally.
func likeFragment(s string) string {
	return strings.NewReplacer("*", "", "%", "").Replace(s)
}

func byID(id int64) rowstore.Filter {
	return rowstore.Where("id", id)
}
