package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
)

const (
	googleIssuerURL = "https://accounts.google.com"
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"
)

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (s *service) GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error) {
	cfg, err := s.googleOAuthConfig()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(state) == "" || strings.TrimSpace(codeChallenge) == "" {
		return "", apperrors.Wrap(CodeInvalidInput, "state and code challenge are required", nil)
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// GoogleCallback exchanges an authorization code and stores the resulting
// refresh token. Re-linking the same account without a new refresh token keeps
// the stored one.
func (s *service) GoogleCallback(ctx context.Context, code, codeVerifier string) (LinkedAccount, error) {
	cfg, err := s.googleOAuthConfig()
	if err != nil {
		return LinkedAccount{}, err
	}
	if strings.TrimSpace(code) == "" || strings.TrimSpace(codeVerifier) == "" {
		return LinkedAccount{}, apperrors.Wrap(CodeInvalidInput, "missing oauth code or verifier", nil)
	}
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return LinkedAccount{}, apperrors.Wrap(CodeOAuthExchange, "failed to exchange oauth code", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return LinkedAccount{}, apperrors.Wrap(CodeOAuthExchange, "missing id_token in oauth response", nil)
	}
	claims, err := s.verify(ctx, rawIDToken)
	if err != nil {
		return LinkedAccount{}, err
	}
	if claims.Subject == "" {
		return LinkedAccount{}, apperrors.Wrap(CodeAuthError, "missing google subject", nil)
	}
	if !claims.EmailVerified {
		return LinkedAccount{}, apperrors.Wrap(CodeInvalidCreds, "google account email not verified", nil)
	}

	existing, found, err := s.grants.Get(ctx)
	if err != nil {
		return LinkedAccount{}, apperrors.Wrap(CodeAuthError, "failed to load google grant", err)
	}

	now := s.now().UTC()
	grant := Grant{
		Subject:   claims.Subject,
		Email:     strings.ToLower(claims.Email),
		Scopes:    cfg.Scopes,
		LinkedAt:  now,
		UpdatedAt: now,
	}
	switch {
	case token.RefreshToken != "":
		encrypted, err := s.sealRefreshToken(claims.Subject, token.RefreshToken)
		if err != nil {
			return LinkedAccount{}, apperrors.Wrap(CodeAuthError, "failed to encrypt refresh token", err)
		}
		grant.RefreshToken = encrypted
	case found && existing.Subject == claims.Subject && existing.RefreshToken != "":
		grant.RefreshToken = existing.RefreshToken
	default:
		return LinkedAccount{}, apperrors.Wrap(CodeOAuthExchange, "google did not return a refresh token", nil)
	}
	if found && existing.Subject == claims.Subject {
		grant.LinkedAt = existing.LinkedAt
	}
	if found && existing.Subject != claims.Subject {
		s.logger.Info("replacing linked google account", "previous_email", existing.Email, "email", grant.Email)
	}

	if err := s.grants.Save(ctx, grant); err != nil {
		return LinkedAccount{}, apperrors.Wrap(CodeAuthError, "failed to persist google grant", err)
	}
	s.logger.Info("google account linked", "email", grant.Email)
	return LinkedAccount{Email: grant.Email, Subject: grant.Subject, LinkedAt: grant.LinkedAt}, nil
}

// TokenSource returns an auto-refreshing source for the linked account.
func (s *service) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := s.googleOAuthConfig()
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refreshToken(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})), nil
}

func (s *service) Status(ctx context.Context) (LinkStatus, error) {
	_, cfgErr := s.googleOAuthConfig()
	grant, found, err := s.grants.Get(ctx)
	if err != nil {
		return LinkStatus{}, apperrors.Wrap(CodeAuthError, "failed to load google grant", err)
	}
	status := LinkStatus{Configured: cfgErr == nil, Linked: found && grant.RefreshToken != ""}
	if status.Linked {
		status.Email = grant.Email
		status.LinkedAt = grant.LinkedAt
	}
	return status, nil
}

// Unlink revokes the refresh token at Google and forgets the grant. Revocation
// failures are logged; the local grant is removed regardless.
func (s *service) Unlink(ctx context.Context) error {
	grant, found, err := s.grants.Get(ctx)
	if err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to load google grant", err)
	}
	if !found {
		return nil
	}
	if refreshToken, err := s.openRefreshToken(grant); err != nil {
		s.logger.Warn("failed to decrypt google refresh token", "error", err)
	} else if refreshToken != "" {
		if err := revokeGoogleToken(ctx, s.revokeURL, refreshToken); err != nil {
			s.logger.Warn("failed to revoke google refresh token", "error", err)
		}
	}
	if err := s.grants.Delete(ctx); err != nil {
		return apperrors.Wrap(CodeAuthError, "failed to delete google grant", err)
	}
	s.logger.Info("google account unlinked", "email", grant.Email)
	return nil
}

func (s *service) refreshToken(ctx context.Context) (string, error) {
	grant, found, err := s.grants.Get(ctx)
	if err != nil {
		return "", apperrors.Wrap(CodeAuthError, "failed to load google grant", err)
	}
	if !found || grant.RefreshToken == "" {
		return "", apperrors.Wrap(CodeNotLinked, "google account is not linked", nil)
	}
	refreshToken, err := s.openRefreshToken(grant)
	if err != nil {
		return "", apperrors.Wrap(CodeAuthError, "failed to decrypt refresh token", err)
	}
	return refreshToken, nil
}

func (s *service) sealRefreshToken(subject, refreshToken string) (string, error) {
	sealer, err := newGrantSealer(s.cfg.Google.TokenEncryptionKey)
	if err != nil {
		return "", err
	}
	return sealer.Seal(subject, refreshToken)
}

func (s *service) openRefreshToken(grant Grant) (string, error) {
	sealer, err := newGrantSealer(s.cfg.Google.TokenEncryptionKey)
	if err != nil {
		return "", err
	}
	return sealer.Open(grant.Subject, grant.RefreshToken)
}

func (s *service) googleOAuthConfig() (*oauth2.Config, error) {
	googleCfg := s.cfg.Google
	if strings.TrimSpace(googleCfg.ClientID) == "" || strings.TrimSpace(googleCfg.ClientSecret) == "" || strings.TrimSpace(googleCfg.RedirectURL) == "" {
		return nil, apperrors.Wrap(CodeNotConfigured, "google oauth is not configured", nil)
	}
	if strings.TrimSpace(googleCfg.TokenEncryptionKey) == "" {
		return nil, apperrors.Wrap(CodeNotConfigured, "google token encryption key is missing", nil)
	}
	return &oauth2.Config{
		ClientID:     googleCfg.ClientID,
		ClientSecret: googleCfg.ClientSecret,
		RedirectURL:  googleCfg.RedirectURL,
		Scopes:       mergeScopes([]string{oidc.ScopeOpenID, "email"}, googleCfg.Scopes),
		Endpoint:     s.endpoint,
	}, nil
}

func (s *service) verifyGoogleIDToken(ctx context.Context, rawToken string) (googleClaims, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return googleClaims{}, apperrors.Wrap(CodeAuthError, "failed to initialize oidc provider", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: s.cfg.Google.ClientID})
	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return googleClaims{}, apperrors.Wrap(CodeInvalidToken, "failed to verify id token", err)
	}
	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return googleClaims{}, apperrors.Wrap(CodeInvalidToken, "failed to parse id token claims", err)
	}
	if claims.Email == "" {
		return googleClaims{}, apperrors.Wrap(CodeInvalidToken, "missing email in id token", nil)
	}
	return claims, nil
}

func mergeScopes(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, scope := range append(append([]string{}, base...), extra...) {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}

func randomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CodeChallengeFromVerifier computes the PKCE code challenge for a verifier.
func CodeChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func revokeGoogleToken(ctx context.Context, endpoint, refreshToken string) error {
	form := url.Values{"token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("google revoke returned status %d", resp.StatusCode)
}

// NewOAuthState returns a state, code verifier, and code challenge for PKCE.
func NewOAuthState() (state string, codeVerifier string, codeChallenge string, err error) {
	state, err = randomString(32)
	if err != nil {
		return "", "", "", err
	}
	codeVerifier, err = randomString(32)
	if err != nil {
		return "", "", "", err
	}
	codeChallenge = CodeChallengeFromVerifier(codeVerifier)
	return state, codeVerifier, codeChallenge, nil
}
