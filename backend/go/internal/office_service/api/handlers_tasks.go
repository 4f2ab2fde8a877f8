package api

import (
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": a.service.Version()})
}

// SubmitTaskHandler accepts a task typed by the user.
func (a *API) SubmitTaskHandler(c *gin.Context) {
	var payload struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	if err := a.service.SubmitTask(c.Request.Context(), payload.Content); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CallbackHandler ingests a status event from the workflow engine. Unknown
// agents are acknowledged and ignored.
func (a *API) CallbackHandler(c *gin.Context) {
	var payload models.CallbackPayload
	if !bindJSON(c, &payload) {
		return
	}
	a.service.HandleCallback(c.Request.Context(), payload)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) ListPipelineTasksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": a.service.ListPipelineTasks(c.Request.Context(), queryLimit(c, 50))})
}

func (a *API) GetPipelineTaskHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := a.service.PipelineTask(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (a *API) ListDiaryHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"diary": a.service.ListDiary(c.Request.Context(), c.Query("agent"), queryLimit(c, 50))})
}

func (a *API) CreateScheduledTaskHandler(c *gin.Context) {
	var payload struct {
		Title    string          `json:"title"`
		Horizon  models.Horizon  `json:"horizon"`
		Priority models.Priority `json:"priority"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	task, err := a.service.CreateScheduledTask(c.Request.Context(), payload.Title, payload.Horizon, payload.Priority)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "task": task})
}

func (a *API) ListScheduledTasksHandler(c *gin.Context) {
	tasks, err := a.service.ListScheduledTasks(c.Request.Context(),
		models.Horizon(c.Query("horizon")), models.ScheduledStatus(c.Query("status")), queryLimit(c, 50))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (a *API) RunScheduledTaskHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pipelineID, err := a.service.RunScheduledTask(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pipeline_task_id": pipelineID})
}

func (a *API) UpdateScheduledStatusHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Status models.ScheduledStatus `json:"status"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	if err := a.service.UpdateScheduledStatus(c.Request.Context(), id, payload.Status); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) TaskDetailHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := a.service.TaskDetail(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (a *API) TaskFeedbackHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Rating      int    `json:"rating"`
		Comment     string `json:"comment"`
		NeedsRework bool   `json:"needs_rework"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	err := a.service.SubmitFeedback(c.Request.Context(), id, service.Feedback{
		Rating:      payload.Rating,
		Comment:     payload.Comment,
		NeedsRework: payload.NeedsRework,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) ReopenTaskHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Context string `json:"context"`
	}
	if !bindOptionalJSON(c, &payload) {
		return
	}
	if err := a.service.ReopenTask(c.Request.Context(), id, payload.Context); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
