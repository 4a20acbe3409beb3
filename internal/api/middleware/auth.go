package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/token"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	tokenContextKey    contextKey = "token"
)

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	tokens *token.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth verifies the Authorization header and injects the caller's
// identity into the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "authentication token required")
			return
		}

		identity, err := m.tokens.Verify(r.Context(), raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := WithIdentity(r.Context(), &identity)
		ctx = context.WithValue(ctx, tokenContextKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken pulls the bearer token from the Authorization header,
// falling back to the "token" cookie for browser clients.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WithIdentity returns a context carrying the caller's identity.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the authenticated identity from the
// request context.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// TokenFromContext retrieves the raw bearer token from the request context.
func TokenFromContext(ctx context.Context) string {
	raw, ok := ctx.Value(tokenContextKey).(string)
	if !ok {
		return ""
	}
	return raw
}
