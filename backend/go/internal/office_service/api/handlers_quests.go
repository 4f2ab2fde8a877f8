package api

import (
	"AgentOffice/backend/go/internal/models"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) CreateQuestHandler(c *gin.Context) {
	var payload struct {
		Title       string           `json:"title"`
		Description string           `json:"description"`
		QuestType   models.QuestType `json:"quest_type"`
		Agent       string           `json:"agent"`
		XPReward    int              `json:"xp_reward"`
		Data        map[string]any   `json:"data"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	quest, err := a.service.CreateQuest(c.Request.Context(), models.NewQuest{
		Title:       payload.Title,
		Description: payload.Description,
		QuestType:   payload.QuestType,
		Agent:       payload.Agent,
		XPReward:    payload.XPReward,
		Data:        payload.Data,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "quest": quest})
}

func (a *API) ListQuestsHandler(c *gin.Context) {
	quests, err := a.service.ListQuests(c.Request.Context(), models.QuestStatus(c.Query("status")), queryLimit(c, 50))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests})
}

// CompleteQuestHandler stores the user's response. The response may be any
// JSON value; non-string values are kept as JSON text.
func (a *API) CompleteQuestHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Response json.RawMessage `json:"response"`
	}
	if !bindOptionalJSON(c, &payload) {
		return
	}
	if err := a.service.CompleteQuest(c.Request.Context(), id, rawText(payload.Response)); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) BriefingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.service.Briefing(c.Request.Context()))
}

func (a *API) CreateIdeaHandler(c *gin.Context) {
	var payload struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	idea, err := a.service.CreateIdea(c.Request.Context(), payload.Content)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "idea": idea})
}

func (a *API) ListIdeasHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ideas": a.service.ListIdeas(c.Request.Context())})
}

func (a *API) StartIdeaHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := a.service.StartIdea(c.Request.Context(), id); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
