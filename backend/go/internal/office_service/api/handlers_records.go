package api

import (
	"AgentOffice/backend/go/internal/models"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultImportance = 5

func (a *API) ListMemoryHandler(c *gin.Context) {
	memories := a.service.ListMemory(c.Request.Context(), c.Query("agent"), c.Query("memory_type"), queryLimit(c, 50))
	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

func (a *API) MemoryContextHandler(c *gin.Context) {
	memories := a.service.MemoryContext(c.Request.Context(), c.Param("agent"), queryLimit(c, 20))
	c.JSON(http.StatusOK, gin.H{"context": memories})
}

func (a *API) SaveMemoryHandler(c *gin.Context) {
	var payload struct {
		Agent        string   `json:"agent"`
		MemoryType   string   `json:"memory_type"`
		Content      string   `json:"content"`
		SourceTaskID *int64   `json:"source_task_id"`
		Importance   *int     `json:"importance"`
		Tags         []string `json:"tags"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	importance := defaultImportance
	if payload.Importance != nil {
		importance = *payload.Importance
	}
	mem, err := a.service.SaveMemory(c.Request.Context(), models.AgentMemory{
		Agent:        payload.Agent,
		MemoryType:   payload.MemoryType,
		Content:      payload.Content,
		SourceTaskID: payload.SourceTaskID,
		Importance:   importance,
		Tags:         payload.Tags,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "memory": mem})
}

func (a *API) DeleteMemoryHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := a.service.DeleteMemory(c.Request.Context(), id); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) GetEcosystemHandler(c *gin.Context) {
	m, found, err := a.service.EcosystemMap(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"ok": true, "content": "", "updated_at": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "content": m.Content, "updated_at": m.CreatedAt, "id": m.ID})
}

func (a *API) UpdateEcosystemHandler(c *gin.Context) {
	var payload struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	m, err := a.service.UpdateEcosystemMap(c.Request.Context(), payload.Content)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "memory": m})
}

func (a *API) ListProfileHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profile": a.service.ListProfile(c.Request.Context())})
}

func (a *API) UpsertProfileHandler(c *gin.Context) {
	var payload struct {
		Category string `json:"category"`
		Key      string `json:"key"`
		Value    string `json:"value"`
		Source   string `json:"source"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	source := payload.Source
	if source == "" {
		source = "manual"
	}
	entry, err := a.service.UpsertProfile(c.Request.Context(), payload.Category, payload.Key, payload.Value, source)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": entry})
}

func (a *API) DeleteProfileHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := a.service.DeleteProfile(c.Request.Context(), id); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) ListFeedbackHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feedbacks": a.service.ListFeedback(c.Request.Context(), c.Query("agent"), queryLimit(c, 50))})
}

func (a *API) SaveFeedbackHandler(c *gin.Context) {
	var payload struct {
		TaskID  int64  `json:"task_id"`
		Agent   string `json:"agent"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	fb, err := a.service.SaveFeedback(c.Request.Context(), models.TaskFeedback{
		TaskID:  payload.TaskID,
		Agent:   payload.Agent,
		Rating:  payload.Rating,
		Comment: payload.Comment,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "feedback": fb})
}

func (a *API) ListErrorsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": a.service.ListErrors(c.Request.Context(), c.Query("agent"), queryLimit(c, 50))})
}

func (a *API) SaveErrorHandler(c *gin.Context) {
	var payload struct {
		Agent       string `json:"agent"`
		ErrorType   string `json:"error_type"`
		ErrorDetail string `json:"error_detail"`
		TaskID      *int64 `json:"task_id"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	rec, err := a.service.SaveError(c.Request.Context(), models.AgentError{
		Agent:       payload.Agent,
		ErrorType:   payload.ErrorType,
		ErrorDetail: payload.ErrorDetail,
		TaskID:      payload.TaskID,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "error_record": rec})
}

func (a *API) ReflectErrorHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := a.service.ReflectError(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	resp := gin.H{"ok": true, "reflection": r.Reflection, "lesson": r.Lesson}
	if r.AlreadyReflected {
		resp["already_reflected"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) AgentStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": a.service.AgentStats(c.Request.Context())})
}

func (a *API) AnalyticsOverviewHandler(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	c.JSON(http.StatusOK, a.service.AnalyticsOverview(c.Request.Context(), days))
}

func (a *API) ListArtifactsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"artifacts": a.service.ListArtifacts(c.Request.Context(), c.Query("status"), queryLimit(c, 20))})
}

func (a *API) DirectMessagesHandler(c *gin.Context) {
	msgs, err := a.service.DirectMessages(c.Request.Context(), c.Query("agent"), queryLimit(c, 30))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *API) DirectChatHandler(c *gin.Context) {
	var payload struct {
		Agent   string `json:"agent"`
		Message string `json:"message"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	reply, err := a.service.DirectChat(c.Request.Context(), payload.Agent, payload.Message)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reply": reply, "agent": payload.Agent})
}
