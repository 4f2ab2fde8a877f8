package models

import "time"

// AnalyticsOverview aggregates the activity of the last Days days.
type AnalyticsOverview struct {
	Days            int            `json:"days"`
	Since           time.Time      `json:"since"`
	TasksTotal      int            `json:"tasks_total"`
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	ScheduledDone   int            `json:"scheduled_done"`
	QuestsCompleted int            `json:"quests_completed"`
	XPEarned        int            `json:"xp_earned"`
	ErrorsTotal     int            `json:"errors_total"`
	ErrorsByAgent   map[string]int `json:"errors_by_agent"`
	Feedbacks       int            `json:"feedbacks"`
	AverageRating   float64        `json:"average_rating"`
	StoreAvailable  bool           `json:"store_available"`
}

// CodeArtifact is a row of the code_artifacts table. Rows are written by the
// workflow engine when it packages a project for deployment.
type CodeArtifact struct {
	ID           int64     `json:"id"`
	TaskID       *int64    `json:"task_id,omitempty"`
	ProjectName  string    `json:"project_name"`
	Status       string    `json:"status"`
	DeployResult any       `json:"deploy_result,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
