package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// sealVersion prefixes every sealed refresh token so the format can change later.
const sealVersion = "g1."

var errMalformedSeal = errors.New("malformed sealed refresh token")

// grantSealer encrypts Google refresh tokens at rest. Each ciphertext is bound
// to the Google subject it was issued for, so a row copied onto another
// account fails to open.
type grantSealer struct {
	aead cipher.AEAD
}

func newGrantSealer(key string) (*grantSealer, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("refresh token key must be 16, 24, or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("create refresh token cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create refresh token aead: %w", err)
	}
	return &grantSealer{aead: aead}, nil
}

func (s *grantSealer) Seal(subject, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read seal nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(refreshToken), []byte(subject))
	return sealVersion + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *grantSealer) Open(subject, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	encoded, ok := strings.CutPrefix(sealed, sealVersion)
	if !ok {
		return "", errMalformedSeal
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errMalformedSeal
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", errMalformedSeal
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(subject))
	if err != nil {
		return "", fmt.Errorf("open refresh token for subject %q: %w", subject, err)
	}
	return string(plain), nil
}
