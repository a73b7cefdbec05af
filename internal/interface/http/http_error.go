package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
)

// HTTPError is the status and public code a failed request answers with.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

type errorRoute struct {
	status int
	code   string
}

// Domain error codes mapped to their public HTTP shape. Codes missing here
// fall back to the owning handler's default.
var authErrorRoutes = map[string]errorRoute{
	auth.CodeInvalidInput:  {http.StatusBadRequest, "invalid_request"},
	auth.CodeInvalidCreds:  {http.StatusUnauthorized, "invalid_credentials"},
	auth.CodeInvalidToken:  {http.StatusForbidden, "invalid_token"},
	auth.CodeNotConfigured: {http.StatusServiceUnavailable, "auth_not_configured"},
	auth.CodeNotLinked:     {http.StatusNotFound, "not_linked"},
	auth.CodeOAuthExchange: {http.StatusBadGateway, "oauth_exchange_failed"},
}

var assistantErrorRoutes = map[string]errorRoute{
	"invalid_input": {http.StatusBadRequest, "invalid_request"},
	"llm_error":     {http.StatusBadGateway, "llm_error"},
}

func routeError(err error, routes map[string]errorRoute, fallback errorRoute) *HTTPError {
	route, ok := routes[apperrors.CodeOf(err)]
	if !ok {
		route = fallback
	}
	return NewHTTPError(route.status, route.code, errMessage(err), err)
}

func authHTTPError(err error) *HTTPError {
	return routeError(err, authErrorRoutes, errorRoute{http.StatusInternalServerError, "auth_failed"})
}

func assistantHTTPError(err error) *HTTPError {
	return routeError(err, assistantErrorRoutes, errorRoute{http.StatusInternalServerError, "assistant_failed"})
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// writeErrorBody renders the JSON error envelope every failed response shares.
func writeErrorBody(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
