package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

// GoogleAuthorize starts the PKCE flow for linking the Google account.
func (h *Handler) GoogleAuthorize(c *gin.Context) {
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_failed", "failed to create oauth state", err))
		return
	}
	url, err := h.authSvc.GoogleAuthURL(c.Request.Context(), state, challenge)
	if err != nil {
		abortWithError(c, authHTTPError(err))
		return
	}
	writeLinkState(c, linkState{State: state, Verifier: verifier, IssuedAt: time.Now().Unix()})
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the flow started by GoogleAuthorize.
func (h *Handler) GoogleCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		dropLinkState(c)
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "oauth_denied", "google authorization was denied: "+reason, nil))
		return
	}
	saved, ok := takeLinkState(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_state", "missing or expired oauth state", nil))
		return
	}
	if !saved.matches(c.Query("state"), time.Now()) {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_state", "oauth state mismatch or expired", nil))
		return
	}

	account, err := h.authSvc.GoogleCallback(c.Request.Context(), c.Query("code"), saved.Verifier)
	if err != nil {
		abortWithError(c, authHTTPError(err))
		return
	}
	h.logger.Info("google account linked over http", "email", account.Email)
	if target := h.postLinkRedirect; target != "" {
		c.Redirect(http.StatusFound, target)
		return
	}
	c.JSON(http.StatusOK, account)
}

// GoogleStatus reports whether an account is linked.
func (h *Handler) GoogleStatus(c *gin.Context) {
	status, err := h.authSvc.Status(c.Request.Context())
	if err != nil {
		abortWithError(c, authHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, status)
}

// GoogleUnlink revokes and forgets the linked account.
func (h *Handler) GoogleUnlink(c *gin.Context) {
	if err := h.authSvc.Unlink(c.Request.Context()); err != nil {
		abortWithError(c, authHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
