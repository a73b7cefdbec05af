package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/yanqian/ai-assistant/pkg/errors"
)

// Service exposes API token issuance and Google account linking.
type Service interface {
	IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
	GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error)
	GoogleCallback(ctx context.Context, code, codeVerifier string) (LinkedAccount, error)
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
	Status(ctx context.Context) (LinkStatus, error)
	Unlink(ctx context.Context) error
	Enabled() bool
}

type service struct {
	cfg    Config
	grants GrantRepository
	logger *slog.Logger
	now    func() time.Time

	endpoint  oauth2.Endpoint
	revokeURL string
	verify    func(ctx context.Context, rawIDToken string) (googleClaims, error)
}

// NewService constructs a Service instance.
func NewService(cfg Config, grants GrantRepository, logger *slog.Logger) Service {
	s := &service{
		cfg:       cfg,
		grants:    grants,
		logger:    logger.With("component", "auth.service"),
		now:       time.Now,
		endpoint:  google.Endpoint,
		revokeURL: googleRevokeURL,
	}
	s.verify = s.verifyGoogleIDToken
	return s
}

// Enabled reports whether API tokens are required on protected routes.
func (s *service) Enabled() bool {
	return strings.TrimSpace(s.cfg.Secret) != ""
}

func (s *service) IssueToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if !s.Enabled() {
		return TokenResponse{}, apperrors.Wrap(CodeNotConfigured, "api tokens are not configured", nil)
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || req.ClientSecret == "" {
		return TokenResponse{}, apperrors.Wrap(CodeInvalidInput, "clientId and clientSecret are required", nil)
	}
	client, ok := s.findClient(clientID)
	if !ok {
		return TokenResponse{}, apperrors.Wrap(CodeInvalidCreds, "invalid client credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.ClientSecret)); err != nil {
		return TokenResponse{}, apperrors.Wrap(CodeInvalidCreds, "invalid client credentials", nil)
	}
	token, expiresAt, err := s.generateToken(client.ID)
	if err != nil {
		return TokenResponse{}, err
	}
	s.logger.Info("api token issued", "client_id", client.ID, "expires_at", expiresAt.Format(time.RFC3339))
	return TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing", nil)
	}
	return s.parseToken(token)
}

func (s *service) findClient(id string) (Client, bool) {
	for _, client := range s.cfg.Clients {
		if client.ID == id {
			return client, true
		}
	}
	return Client{}, false
}

func (s *service) generateToken(clientID string) (string, time.Time, error) {
	now := s.now()
	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(CodeAuthError, "failed to sign token", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "token missing expiry", nil)
	}
	if _, known := s.findClient(claims.ClientID); !known {
		return Claims{}, apperrors.Wrap(CodeInvalidToken, "client no longer allowed", nil)
	}
	return Claims{
		ClientID:  claims.ClientID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"clientId"`
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}
