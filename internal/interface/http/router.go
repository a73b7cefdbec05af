package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
// Protected routes require a bearer token only when API auth is enabled.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.Use(
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
			writeErrorBody(c, http.StatusInternalServerError, "internal_error", "something went wrong")
		}),
		requestContext(logger),
		corsMiddleware(cfg.HTTP.CORS.AllowedOrigins),
		errorHandlingMiddleware(logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/token", handler.IssueToken)
		api.GET("/google/authorize", handler.GoogleAuthorize)
		api.GET("/google/callback", handler.GoogleCallback)
	}

	protected := api.Group("")
	if authSvc != nil && authSvc.Enabled() {
		protected.Use(authMiddleware(authSvc))
	} else {
		logger.Warn("api authentication disabled; protected routes are open")
	}
	{
		protected.POST("/calendar/analyze", handler.AnalyzeCalendarQuery)
		protected.GET("/calendar/queries", handler.RecentQueries)
		protected.POST("/assistant/messages", handler.HandleMessage)
		protected.GET("/google/status", handler.GoogleStatus)
		protected.DELETE("/google/link", handler.GoogleUnlink)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
