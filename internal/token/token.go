// Package token mints and verifies the signed bearer tokens that
// authenticate users on both the HTTP API and the session handshake.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devroom-sh/devroom/internal/models"
)

var (
	// ErrInvalidToken is returned for malformed, unsigned, or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token has expired")

	// ErrRevokedToken is returned for tokens invalidated at logout.
	ErrRevokedToken = errors.New("token has been revoked")
)

// Revoker answers whether a token has been invalidated (logout).
// Backed by Redis in production; nil disables revocation checks.
type Revoker interface {
	IsRevoked(ctx context.Context, token string) bool
}

// Claims are the JWT claims carried by a user token.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager signs and verifies user tokens with an HMAC secret.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

// NewManager creates a token manager. revoker may be nil.
func NewManager(secret string, ttl time.Duration, revoker Revoker) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, revoker: revoker}
}

// Sign mints a token for the given user.
func (m *Manager) Sign(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, expiry, and revocation status,
// and returns the identity it carries.
func (m *Manager) Verify(ctx context.Context, tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, ErrExpiredToken
		}
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	if m.revoker != nil && m.revoker.IsRevoked(ctx, tokenString) {
		return models.Identity{}, ErrRevokedToken
	}

	return models.Identity{ID: claims.UserID, Email: claims.Email}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
