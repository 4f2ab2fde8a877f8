package api

import (
	"AgentOffice/backend/go/internal/models"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// WebSocketHandler upgrades the connection, sends the init snapshot and then
// reads task submissions until the client goes away.
func (a *API) WebSocketHandler(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to upgrade WebSocket connection")
		return
	}
	if err := a.hub.Attach(conn, a.service.State().InitEvent); err != nil {
		a.logger.WithErr(err).Warn("Failed to attach WebSocket client")
		_ = conn.Close()
		return
	}
	defer a.hub.Detach(conn)

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.logger.WithErr(err).Debug("Ignoring malformed WebSocket message")
			continue
		}
		if msg.Type != "task" || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if err := a.service.SubmitTask(ctx, msg.Content); err != nil {
			a.logger.WithErr(err).Warn("WebSocket task submission failed")
		}
	}
}
