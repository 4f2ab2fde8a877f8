package models

import "time"

// IdeaStatus follows planning -> planned -> active -> done.
type IdeaStatus string

const (
	IdeaPlanning IdeaStatus = "planning"
	IdeaPlanned  IdeaStatus = "planned"
	IdeaActive   IdeaStatus = "active"
	IdeaDone     IdeaStatus = "done"
)

// Idea is a row of the ideas table.
type Idea struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Plan      string     `json:"plan,omitempty"`
	Result    string     `json:"result,omitempty"`
	Status    IdeaStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
