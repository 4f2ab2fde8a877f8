package models

import "time"

// PipelineStatus is the state of a task dispatched to the workflow engine.
type PipelineStatus string

const (
	PipelineProcessing PipelineStatus = "processing"
	PipelineDone       PipelineStatus = "done"
	PipelineError      PipelineStatus = "error"
)

// PipelineTask is a row of the tasks table.
type PipelineTask struct {
	ID            int64          `json:"id"`
	Content       string         `json:"content"`
	Status        PipelineStatus `json:"status"`
	Summary       string         `json:"summary,omitempty"`
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

// Horizon is the planning horizon of a scheduled task.
type Horizon string

const (
	HorizonNow   Horizon = "now"
	HorizonDay   Horizon = "day"
	HorizonWeek  Horizon = "week"
	HorizonMonth Horizon = "month"
)

func (h Horizon) Valid() bool {
	switch h {
	case HorizonNow, HorizonDay, HorizonWeek, HorizonMonth:
		return true
	}
	return false
}

// Priority of a scheduled task.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLater  Priority = "later"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityNormal, PriorityLater:
		return true
	}
	return false
}

// ScheduledStatus is the user-facing task state.
type ScheduledStatus string

const (
	ScheduledPending    ScheduledStatus = "pending"
	ScheduledInProgress ScheduledStatus = "in_progress"
	ScheduledDone       ScheduledStatus = "done"
	ScheduledCancelled  ScheduledStatus = "cancelled"
)

func (s ScheduledStatus) Valid() bool {
	switch s {
	case ScheduledPending, ScheduledInProgress, ScheduledDone, ScheduledCancelled:
		return true
	}
	return false
}

// scheduledTransitions lists the allowed explicit status changes.
var scheduledTransitions = map[ScheduledStatus][]ScheduledStatus{
	ScheduledPending:    {ScheduledInProgress, ScheduledCancelled},
	ScheduledInProgress: {ScheduledDone, ScheduledCancelled, ScheduledPending},
	ScheduledDone:       {ScheduledInProgress},
}

// CanTransition reports whether a scheduled task may move from s to next.
// Setting the current status again is always allowed except out of cancelled.
func (s ScheduledStatus) CanTransition(next ScheduledStatus) bool {
	if s == ScheduledCancelled {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range scheduledTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReviewStatus is the user review outcome of a finished scheduled task.
type ReviewStatus string

const (
	ReviewNone        ReviewStatus = "none"
	ReviewPending     ReviewStatus = "pending_review"
	ReviewApproved    ReviewStatus = "approved"
	ReviewNeedsRework ReviewStatus = "needs_rework"
)

// ScheduledTask is a row of the scheduled_tasks table.
type ScheduledTask struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Horizon       Horizon         `json:"horizon"`
	Priority      Priority        `json:"priority"`
	Status        ScheduledStatus `json:"status"`
	LinkedTaskID  *int64          `json:"linked_task_id,omitempty"`
	AssignedAgent string          `json:"assigned_agent,omitempty"`
	Result        string          `json:"result,omitempty"`
	ReviewStatus  ReviewStatus    `json:"review_status,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// TaskDetail bundles a scheduled task with everything related to it.
type TaskDetail struct {
	Task      ScheduledTask   `json:"task"`
	AgentLogs []PipelineTask  `json:"agent_logs"`
	Feedback  []TaskFeedback  `json:"feedback"`
	Timeline  []StoredMessage `json:"timeline"`
}
