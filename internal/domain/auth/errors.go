package auth

// Error codes surfaced through apperrors.
const (
	CodeAuthError     = "auth_error"
	CodeInvalidInput  = "invalid_input"
	CodeInvalidToken  = "invalid_token"
	CodeInvalidCreds  = "invalid_credentials"
	CodeNotConfigured = "auth_not_configured"
	CodeNotLinked     = "not_linked"
	CodeOAuthExchange = "oauth_exchange_failed"
)
