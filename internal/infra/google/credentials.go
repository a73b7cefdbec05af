package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// TokenSourceProvider yields OAuth tokens for Google API calls. The auth
// service satisfies it for linked user accounts.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// ClientSecrets are the OAuth client fields of a downloaded credentials file.
type ClientSecrets struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Credentials describes a credentials.json file. Exactly one of
// ServiceAccount and Client is set.
type Credentials struct {
	ServiceAccount TokenSourceProvider
	Client         *ClientSecrets
}

// ErrNoCredentials is returned when the credentials file does not exist.
var ErrNoCredentials = errors.New("google credentials file not found")

// LoadCredentials reads path and recognizes service accounts as well as
// "installed" and "web" OAuth clients.
func LoadCredentials(ctx context.Context, path string, scopes ...string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read google credentials: %w", err)
	}
	return ParseCredentials(ctx, data, scopes...)
}

// ParseCredentials is LoadCredentials for in-memory JSON.
func ParseCredentials(ctx context.Context, data []byte, scopes ...string) (Credentials, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Credentials{}, fmt.Errorf("decode google credentials: %w", err)
	}

	if header.Type == "service_account" {
		creds, err := googleoauth.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return Credentials{}, fmt.Errorf("load service account: %w", err)
		}
		return Credentials{ServiceAccount: staticProvider{ts: creds.TokenSource}}, nil
	}

	cfg, err := googleoauth.ConfigFromJSON(data, scopes...)
	if err != nil {
		return Credentials{}, fmt.Errorf("load oauth client: %w", err)
	}
	return Credentials{Client: &ClientSecrets{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
	}}, nil
}

type staticProvider struct {
	ts oauth2.TokenSource
}

func (p staticProvider) TokenSource(context.Context) (oauth2.TokenSource, error) {
	return p.ts, nil
}

// StaticTokenSource adapts a fixed token source to TokenSourceProvider.
func StaticTokenSource(ts oauth2.TokenSource) TokenSourceProvider {
	return staticProvider{ts: ts}
}
