package auth

import "time"

// Config drives authentication behavior.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	Clients  []Client
	Google   GoogleConfig
}

// Client is an API consumer allowed to request tokens. SecretHash holds a
// bcrypt hash of its secret.
type Client struct {
	ID         string
	SecretHash string
}

// GoogleConfig holds OAuth settings for linking the Google account whose
// calendar and mailbox the assistant reads.
type GoogleConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	Scopes              []string
	TokenEncryptionKey  string
	PostLinkRedirectURL string
}

// Grant is the persisted Google authorization. RefreshToken is encrypted.
type Grant struct {
	Subject      string    `json:"subject"`
	Email        string    `json:"email"`
	RefreshToken string    `json:"refreshToken"`
	Scopes       []string  `json:"scopes,omitempty"`
	LinkedAt     time.Time `json:"linkedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LinkedAccount describes the account after a successful callback.
type LinkedAccount struct {
	Email    string    `json:"email"`
	Subject  string    `json:"subject"`
	LinkedAt time.Time `json:"linkedAt"`
}

// LinkStatus reports whether a Google account is linked.
type LinkStatus struct {
	Linked     bool      `json:"linked"`
	Configured bool      `json:"configured"`
	Email      string    `json:"email,omitempty"`
	LinkedAt   time.Time `json:"linkedAt,omitempty"`
}

// TokenRequest captures the client credentials exchange payload.
type TokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// TokenResponse returns the signed API token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are extracted from the JWT token.
type Claims struct {
	ClientID  string
	ExpiresAt time.Time
}
