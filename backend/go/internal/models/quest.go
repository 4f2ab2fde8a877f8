package models

import (
	"strconv"
	"time"
)

// QuestType classifies what the user is asked for.
type QuestType string

const (
	QuestProvideToken QuestType = "provide_token"
	QuestAPIKey       QuestType = "api_key"
	QuestApprove      QuestType = "approve"
	QuestTopUp        QuestType = "top_up"
	QuestInfo         QuestType = "info"
)

func (t QuestType) Valid() bool {
	switch t {
	case QuestProvideToken, QuestAPIKey, QuestApprove, QuestTopUp, QuestInfo:
		return true
	}
	return false
}

// QuestStatus only moves forward: pending -> completed.
type QuestStatus string

const (
	QuestPending   QuestStatus = "pending"
	QuestCompleted QuestStatus = "completed"
)

// Quest actions link a quest to the lifecycle step that produced it.
const (
	ActionReview     = "review"
	ActionUserAction = "user_action"
)

// Quest is a row of the quests table. TaskID and Action are stored as columns
// and mirrored into Data for dashboards that only read the payload.
type Quest struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	QuestType   QuestType      `json:"quest_type"`
	Agent       string         `json:"agent"`
	XPReward    int            `json:"xp_reward"`
	Status      QuestStatus    `json:"status"`
	TaskID      *int64         `json:"task_id,omitempty"`
	Action      string         `json:"action,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Response    string         `json:"response,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewQuest describes a quest to be created.
type NewQuest struct {
	Title       string
	Description string
	QuestType   QuestType
	Agent       string
	XPReward    int
	TaskID      *int64
	Action      string
	Data        map[string]any
}

// InputLabel is the label shown next to the quest's input field.
func (q Quest) InputLabel() string {
	if s, ok := q.Data["input_label"].(string); ok && s != "" {
		return s
	}
	return q.Title
}

// LinkFromData fills TaskID and Action from the free-form payload when they are
// not set explicitly. Quests created by external callers only carry the payload.
func (n *NewQuest) LinkFromData() {
	if n.Data == nil {
		return
	}
	if n.Action == "" {
		if s, ok := n.Data["action"].(string); ok {
			n.Action = s
		}
	}
	if n.TaskID == nil {
		if id, ok := AsInt64(n.Data["task_id"]); ok {
			n.TaskID = &id
		}
	}
}

// AsInt64 converts a decoded JSON value (number or numeric string) to int64.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
