package models

import "time"

// Chat roles that are not agent keys.
const (
	RoleUser          = "user"
	RoleSystem        = "system"
	RoleDirectUser    = "direct_user"
	RoleDirectAgent   = "direct_agent"
	ClockLayout       = "15:04"
	systemDisplayName = "System"
)

// ChatMessage is one entry of the shared dashboard chat.
type ChatMessage struct {
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Color     string    `json:"color"`
	Content   string    `json:"content"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage builds the chat entry for dashboard or bot input.
func NewUserMessage(content string, now time.Time) ChatMessage {
	return ChatMessage{
		Role:      RoleUser,
		Name:      "You",
		Emoji:     "👤",
		Color:     "#6366f1",
		Content:   content,
		Time:      now.Format(ClockLayout),
		Timestamp: now,
	}
}

// NewSystemMessage builds a chat entry raised by the backend itself.
func NewSystemMessage(content string, now time.Time) ChatMessage {
	return ChatMessage{
		Role:      RoleSystem,
		Name:      systemDisplayName,
		Emoji:     "⚠️",
		Color:     "#ff2a6d",
		Content:   content,
		Time:      now.Format(ClockLayout),
		Timestamp: now,
	}
}

// NewAgentMessage builds a chat entry on behalf of a catalogued agent.
func NewAgentMessage(def AgentDef, content string, now time.Time) ChatMessage {
	return ChatMessage{
		Role:      def.Key,
		Name:      def.Name,
		Emoji:     def.Emoji,
		Color:     def.Color,
		Content:   content,
		Time:      now.Format(ClockLayout),
		Timestamp: now,
	}
}

// StoredMessage is a row of the messages table. Dashboard chat rows leave Agent
// empty; direct chats carry the agent key and a direct_* role.
type StoredMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Agent     string    `json:"agent,omitempty"`
	Name      string    `json:"name,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	Color     string    `json:"color,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToChat converts a stored row back into a dashboard chat entry.
func (m StoredMessage) ToChat() ChatMessage {
	return ChatMessage{
		Role:      m.Role,
		Name:      m.Name,
		Emoji:     m.Emoji,
		Color:     m.Color,
		Content:   m.Content,
		Time:      m.CreatedAt.Local().Format(ClockLayout),
		Timestamp: m.CreatedAt,
	}
}
