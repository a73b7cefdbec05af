package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

// authMiddleware admits requests carrying an API token issued by IssueToken.
func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, reason := bearerToken(c.GetHeader("Authorization"))
		if reason != "" {
			c.Header("WWW-Authenticate", `Bearer realm="assistant"`)
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", reason, nil))
			return
		}
		claims, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, authHTTPError(err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header. A non-empty
// reason explains why the header was rejected.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

const apiClientKey = "api_client"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(apiClientKey, claims)
}

// getClaims returns the authenticated API client, if any.
func getClaims(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Value(apiClientKey).(auth.Claims)
	return claims, ok
}
