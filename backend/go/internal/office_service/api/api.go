package api

import (
	"AgentOffice/backend/go/internal/llm"
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/internal/office_service/fanout"
	"AgentOffice/backend/go/internal/office_service/service"
	"AgentOffice/backend/go/pkg/logger"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const errInvalidJSON = "invalid JSON"

// Options configure the HTTP surface.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
}

// API provides the handlers of the office service.
type API struct {
	service  *service.OfficeService
	hub      *fanout.Hub
	metrics  *metrics.Metrics
	logger   *logger.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func NewAPI(svc *service.OfficeService, hub *fanout.Hub, m *metrics.Metrics, log *logger.Logger, opts Options) *API {
	if log == nil {
		log = logger.Discard()
	}
	a := &API{
		service: svc,
		hub:     hub,
		metrics: m,
		logger:  log.Named("api"),
		opts:    opts,
	}
	a.upgrader = websocket.Upgrader{CheckOrigin: a.originAllowed}
	return a
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, models.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, service.ErrWorkflowUnavailable),
		errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.logger.WithErr(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(code, gin.H{"ok": false, "error": err.Error()})
}

// bindJSON decodes the body into dst. It writes the 400 response itself and
// reports false on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, models.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": errInvalidJSON})
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": errInvalidJSON})
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context, fallback int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// rawText turns a free-form JSON value into the text stored with a quest
// response: strings are unquoted, anything else is kept as JSON.
func rawText(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	return string(v)
}
