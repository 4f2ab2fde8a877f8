package store

import (
	"AgentOffice/backend/go/internal/database/rowstore"
	"AgentOffice/backend/go/internal/models"
	"context"
	"math"
)

// Briefing bundles what an agent or chat caller should know right now.
func (s *Store) Briefing(ctx context.Context) models.Briefing {
	b := models.Briefing{
		PendingQuests:  s.ListQuests(ctx, models.QuestPending, 20),
		ActiveTasks:    s.ListScheduled(ctx, "", models.ScheduledInProgress, 20),
		RecentErrors:   s.ListErrors(ctx, "", 5),
		Profile:        s.ListProfile(ctx, ""),
		GeneratedAt:    s.now().UTC(),
		StoreAvailable: s.Available(),
	}
	if m, ok := s.EcosystemMap(ctx); ok {
		b.EcosystemMap = m.Content
	}
	return b
}

// AgentStats counts the auxiliary records of one agent.
func (s *Store) AgentStats(ctx context.Context, agent string, status models.AgentStatus) models.AgentStats {
	count := func(table string) int {
		return len(s.gw.Select(ctx, table, rowstore.Where("agent", agent).Select("id").WithLimit(1000)))
	}
	stats := models.AgentStats{
		Agent:        agent,
		Status:       string(status),
		Memories:     count(TableMemory),
		Errors:       count(TableErrors),
		DiaryEntries: count(TableDiary),
	}
	ratings := s.gw.Select(ctx, TableFeedback, rowstore.Where("agent", agent).Select("rating").WithLimit(1000))
	total := 0
	for _, r := range ratings {
		if n, ok := models.AsInt64(r["rating"]); ok {
			total += int(n)
			stats.Feedbacks++
		}
	}
	if stats.Feedbacks > 0 {
		stats.AverageRating = math.Round(float64(total)/float64(stats.Feedbacks)*100) / 100
	}
	return stats
}
