package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	assistantSvc     assistant.Service
	analyzer         calendarquery.Service
	authSvc          auth.Service
	postLinkRedirect string
	logger           *slog.Logger
}

// NewHandler constructs the root HTTP handler. postLinkRedirect, when set, is
// where the browser lands after a successful Google link.
func NewHandler(assistantSvc assistant.Service, analyzer calendarquery.Service, authSvc auth.Service, postLinkRedirect string, logger *slog.Logger) *Handler {
	return &Handler{
		assistantSvc:     assistantSvc,
		analyzer:         analyzer,
		authSvc:          authSvc,
		postLinkRedirect: postLinkRedirect,
		logger:           logger.With("component", "http.handler"),
	}
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Timezone string `json:"timezone"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AnalyzeCalendarQuery turns a question into a search window without touching
// any calendar.
func (h *Handler) AnalyzeCalendarQuery(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "text cannot be empty", nil))
		return
	}
	c.JSON(http.StatusOK, h.analyzer.Analyze(c.Request.Context(), req.Text, req.Timezone))
}

// HandleMessage runs a chat message through the assistant.
func (h *Handler) HandleMessage(c *gin.Context) {
	var req assistant.Message
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	reply, err := h.assistantSvc.HandleMessage(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, assistantHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, reply)
}

// RecentQueries lists logged calendar questions, newest first.
func (h *Handler) RecentQueries(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "limit must be a positive integer", err))
			return
		}
		limit = n
	}
	entries, err := h.assistantSvc.RecentQueries(c.Request.Context(), c.Query("chatId"), limit)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "query_log_failed", errMessage(err), err))
		return
	}
	if entries == nil {
		entries = []assistant.QueryLogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"queries": entries})
}

// IssueToken exchanges client credentials for an API token.
func (h *Handler) IssueToken(c *gin.Context) {
	var req auth.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.IssueToken(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, authHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}
