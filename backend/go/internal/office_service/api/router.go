package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route of the office service.
func NewRouter(a *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(a.logger), CORS(a.opts.AllowedOrigins))
	RegisterRoutes(router, a)
	return router
}

// RegisterRoutes registers all the routes for the office service.
func RegisterRoutes(router *gin.Engine, a *API) {
	router.GET("/", a.RootHandler)
	router.GET("/ws", a.WebSocketHandler)
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	v := router.Group("/api")
	{
		v.POST("/task", a.SubmitTaskHandler)
		v.POST("/n8n/callback", a.CallbackHandler)
		v.GET("/tasks", a.ListPipelineTasksHandler)
		v.GET("/agent-tasks/:id", a.GetPipelineTaskHandler)
		v.GET("/diary", a.ListDiaryHandler)

		v.POST("/scheduled-tasks", a.CreateScheduledTaskHandler)
		v.GET("/scheduled-tasks", a.ListScheduledTasksHandler)
		v.POST("/scheduled-tasks/:id/run", a.RunScheduledTaskHandler)
		v.PUT("/scheduled-tasks/:id/status", a.UpdateScheduledStatusHandler)
		v.GET("/tasks/:id/detail", a.TaskDetailHandler)
		v.POST("/tasks/:id/feedback", a.TaskFeedbackHandler)
		v.POST("/tasks/:id/reopen", a.ReopenTaskHandler)

		v.POST("/quests", a.CreateQuestHandler)
		v.GET("/quests", a.ListQuestsHandler)
		v.PUT("/quests/:id/complete", a.CompleteQuestHandler)
		v.GET("/briefing", a.BriefingHandler)

		v.POST("/ideas", a.CreateIdeaHandler)
		v.GET("/ideas", a.ListIdeasHandler)
		v.POST("/ideas/:id/start", a.StartIdeaHandler)

		v.GET("/memory", a.ListMemoryHandler)
		v.GET("/memory/context/:agent", a.MemoryContextHandler)
		v.POST("/memory", a.SaveMemoryHandler)
		v.DELETE("/memory/:id", a.DeleteMemoryHandler)
		v.GET("/ecosystem", a.GetEcosystemHandler)
		v.PUT("/ecosystem", a.UpdateEcosystemHandler)
		v.GET("/profile", a.ListProfileHandler)
		v.PUT("/profile", a.UpsertProfileHandler)
		v.DELETE("/profile/:id", a.DeleteProfileHandler)
		v.GET("/feedback", a.ListFeedbackHandler)
		v.POST("/feedback", a.SaveFeedbackHandler)
		v.GET("/errors", a.ListErrorsHandler)
		v.POST("/errors", a.SaveErrorHandler)
		v.POST("/errors/:id/reflect", a.ReflectErrorHandler)
		v.GET("/agents/stats", a.AgentStatsHandler)
		v.GET("/analytics/overview", a.AnalyticsOverviewHandler)
		v.GET("/deploy/artifacts", a.ListArtifactsHandler)
		v.GET("/chat/direct", a.DirectMessagesHandler)
		v.POST("/chat/direct", a.DirectChatHandler)
	}

	admin := v.Group("/admin")
	admin.Use(AuthMiddleware(a.opts.JWTSecret))
	{
		admin.GET("/health", a.HealthHandler)
		admin.POST("/agents/reset", a.ResetAgentsHandler)
		admin.POST("/tasks/:id/retry", a.RetryTaskHandler)
		admin.POST("/errors/reflect-all", a.ReflectAllHandler)
		admin.GET("/metrics", a.MetricsHandler)
	}
}
