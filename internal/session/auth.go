package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/store"
	"github.com/devroom-sh/devroom/internal/token"
)

// Handshake rejection reason codes. These are part of the wire contract:
// clients can branch on them.
const (
	ReasonInvalidProject  = "invalid-project"
	ReasonProjectNotFound = "project-not-found"
	ReasonMissingToken    = "missing-token"
	ReasonInvalidToken    = "invalid-token"
	ReasonUnauthorized    = "unauthorized"
)

// RejectError carries a machine-readable handshake rejection.
type RejectError struct {
	Reason string
	Status int
}

func (e *RejectError) Error() string {
	return "handshake rejected: " + e.Reason
}

func reject(reason string, status int) *RejectError {
	return &RejectError{Reason: reason, Status: status}
}

// Verifier validates a bearer token and extracts the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (models.Identity, error)
}

// ProjectLoader answers project lookups; the membership oracle.
type ProjectLoader interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Authenticator runs at connection-establishment time: it validates the
// handshake's project and token and checks project membership. On
// success the identity and project context are attached to the
// connection for its lifetime; no re-authentication happens afterwards.
type Authenticator struct {
	verifier Verifier
	projects ProjectLoader
}

// NewAuthenticator composes the token verifier and project store.
func NewAuthenticator(verifier Verifier, projects ProjectLoader) *Authenticator {
	return &Authenticator{verifier: verifier, projects: projects}
}

// Authenticate checks a handshake. On rejection it returns a
// *RejectError with a machine-readable reason; the caller must close
// the transport and must not join any room.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString, projectID string) (models.Identity, *models.Project, error) {
	pid, err := uuid.Parse(projectID)
	if err != nil {
		return models.Identity{}, nil, reject(ReasonInvalidProject, http.StatusBadRequest)
	}

	project, err := a.projects.GetProject(ctx, pid)
	if err != nil {
		return models.Identity{}, nil, err
	}
	if project == nil {
		return models.Identity{}, nil, reject(ReasonProjectNotFound, http.StatusNotFound)
	}

	if tokenString == "" {
		return models.Identity{}, nil, reject(ReasonMissingToken, http.StatusUnauthorized)
	}

	identity, err := a.verifier.Verify(ctx, tokenString)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, token.ErrExpiredToken) || errors.Is(err, token.ErrRevokedToken) {
			return models.Identity{}, nil, reject(ReasonInvalidToken, http.StatusUnauthorized)
		}
		return models.Identity{}, nil, err
	}

	userID, err := uuid.Parse(identity.ID)
	if err != nil || !project.HasMember(userID) {
		return models.Identity{}, nil, reject(ReasonUnauthorized, http.StatusForbidden)
	}

	return identity, project, nil
}

var _ ProjectLoader = (store.DataStore)(nil)
