package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/devroom-sh/devroom/internal/api/middleware"
	"github.com/devroom-sh/devroom/internal/metrics"
	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/store"
)

// Username validation: alphanumeric, hyphens, underscores, 3-30 chars
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// RegisterRequest represents the user registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

// AuthResponse carries a user plus a freshly minted token.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = sanitizeName(req.Name)
	if len(req.Name) < 2 {
		h.Error(w, http.StatusBadRequest, "name must be at least 2 characters")
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		h.Error(w, http.StatusBadRequest, "username must be 3-30 characters, alphanumeric with hyphens and underscores only")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 6 {
		h.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if req.Age < 0 || req.Age > 120 {
		h.Error(w, http.StatusBadRequest, "age out of range")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Name, req.Username, strings.ToLower(req.Email), req.Age, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.Error(w, http.StatusConflict, "email or username already registered")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	tok, err := h.tokens.Sign(user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	metrics.UsersRegistered.Inc()
	h.JSON(w, http.StatusCreated, AuthResponse{User: user, Token: tok})
}

// Login handles credential verification and token issuance.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := h.tokens.Sign(user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, AuthResponse{User: user, Token: tok})
}

// Profile returns the authenticated user's record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(identity.ID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]*models.User{"user": user})
}

// Logout blacklists the presented token for its remaining lifetime.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	tok := middleware.TokenFromContext(r.Context())
	if tok == "" {
		h.Error(w, http.StatusBadRequest, "no token provided for logout")
		return
	}

	if h.redis != nil {
		if err := h.redis.RevokeToken(r.Context(), tok, h.tokens.TTL()); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to revoke token")
			return
		}
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// AllUsers lists every user except the caller, for collaborator picking.
func (h *Handler) AllUsers(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.Parse(identity.ID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	users, err := h.db.ListUsersExcept(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if users == nil {
		users = []models.User{}
	}

	h.JSON(w, http.StatusOK, map[string][]models.User{"users": users})
}
