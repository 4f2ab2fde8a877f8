package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.service.Health(c.Request.Context()))
}

func (a *API) ResetAgentsHandler(c *gin.Context) {
	a.service.ResetAgents()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) RetryTaskHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := a.service.RetryScheduledTask(c.Request.Context(), id); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) ReflectAllHandler(c *gin.Context) {
	n, err := a.service.ReflectAll(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": n})
}

func (a *API) MetricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.service.Metrics(c.Request.Context()))
}
