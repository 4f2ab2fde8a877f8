package models

import "time"

// Memory types with special handling.
const (
	MemoryLesson       = "lesson"
	MemoryEcosystemMap = "ecosystem_map"
	SystemAgent        = "system"
)

// AgentMemory is a row of the agent_memory table.
type AgentMemory struct {
	ID           int64     `json:"id"`
	Agent        string    `json:"agent"`
	MemoryType   string    `json:"memory_type"`
	Content      string    `json:"content"`
	SourceTaskID *int64    `json:"source_task_id,omitempty"`
	Importance   int       `json:"importance"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentError is a row of the agent_errors table.
type AgentError struct {
	ID          int64     `json:"id"`
	Agent       string    `json:"agent"`
	ErrorType   string    `json:"error_type"`
	ErrorDetail string    `json:"error_detail"`
	TaskID      *int64    `json:"task_id,omitempty"`
	Reflection  string    `json:"reflection,omitempty"`
	Lesson      string    `json:"lesson,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskFeedback is a row of the task_feedback table.
type TaskFeedback struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Agent     string    `json:"agent"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DiaryEntry is a row of the diary table.
type DiaryEntry struct {
	ID        int64     `json:"id"`
	Agent     string    `json:"agent"`
	EntryType string    `json:"entry_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileEntry is a row of the user_profile table, unique on (category, key).
type ProfileEntry struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Briefing is the context bundle handed to chat and LLM callers.
type Briefing struct {
	PendingQuests  []Quest         `json:"pending_quests"`
	ActiveTasks    []ScheduledTask `json:"active_tasks"`
	RecentErrors   []AgentError    `json:"recent_errors"`
	Profile        []ProfileEntry  `json:"profile"`
	EcosystemMap   string          `json:"ecosystem_map"`
	GeneratedAt    time.Time       `json:"generated_at"`
	StoreAvailable bool            `json:"store_available"`
}
