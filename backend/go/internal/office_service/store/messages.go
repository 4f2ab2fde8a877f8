package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
)

// SaveChatMessage persists a dashboard chat entry in the background.
func (s *Store) SaveChatMessage(ctx context.Context, msg models.ChatMessage) {
	created := msg.Timestamp
	if created.IsZero() {
		created = s.now()
	}
	s.gw.Insert(ctx, TableMessages, rowstore.Row{
		"role":       msg.Role,
		"name":       msg.Name,
		"emoji":      msg.Emoji,
		"color":      msg.Color,
		"content":    msg.Content,
		"created_at": models.FormatTime(created),
	})
}

// RecentChat returns the latest dashboard messages, oldest first.
func (s *Store) RecentChat(ctx context.Context, limit int) []models.ChatMessage {
	rows := s.gw.Select(ctx, TableMessages, rowstore.Filter{}.
		IsNull("agent").
		OrderDesc("created_at").
		WithLimit(Limit(limit, 80)))
	stored := reverse(decodeAll[models.StoredMessage](rows))
	out := make([]models.ChatMessage, len(stored))
	for i, m := range stored {
		out[i] = m.ToChat()
	}
	return out
}

// SaveDirectMessage stores one side of a direct conversation with an agent.
func (s *Store) SaveDirectMessage(ctx context.Context, agent, role, content string) (models.StoredMessage, bool) {
	row := s.gw.InsertReturning(ctx, TableMessages, rowstore.Row{
		"role":       role,
		"agent":      agent,
		"content":    content,
		"created_at": s.stamp(),
	})
	return decode[models.StoredMessage](row)
}

// DirectMessages returns the latest direct conversation with agent, oldest first.
func (s *Store) DirectMessages(ctx context.Context, agent string, limit int) []models.StoredMessage {
	rows := s.gw.Select(ctx, TableMessages, rowstore.Where("agent", agent).
		In("role", models.RoleDirectUser, models.RoleDirectAgent).
		OrderDesc("created_at").
		WithLimit(Limit(limit, 20)))
	return reverse(decodeAll[models.StoredMessage](rows))
}

// MessagesLike returns messages containing fragment, oldest first.
func (s *Store) MessagesLike(ctx context.Context, fragment string, limit int) []models.StoredMessage {
	fragment = likeFragment(fragment)
	if fragment == "" {
		return []models.StoredMessage{}
	}
	rows := s.gw.Select(ctx, TableMessages, rowstore.Filter{}.
		Like("content", "*"+fragment+"*").
		OrderAsc("created_at").
		WithLimit(Limit(limit, 50)))
	return decodeAll[models.StoredMessage](rows)
}
