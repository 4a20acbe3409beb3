package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/token"
)

type fakeVerifier struct {
	identities map[string]models.Identity
	err        error
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (models.Identity, error) {
	if f.err != nil {
		return models.Identity{}, f.err
	}
	id, ok := f.identities[raw]
	if !ok {
		return models.Identity{}, token.ErrInvalidToken
	}
	return id, nil
}

type fakeProjects struct {
	projects map[uuid.UUID]*models.Project
	err      error
}

func (f *fakeProjects) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.projects[id], nil
}

func authFixture() (*Authenticator, *models.Project, string) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	project := &models.Project{
		ID:      uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
		OwnerID: owner,
	}

	verifier := &fakeVerifier{identities: map[string]models.Identity{
		"owner-token":    {ID: owner.String(), Email: "owner@example.com"},
		"stranger-token": {ID: uuid.MustParse("99999999-9999-9999-9999-999999999999").String(), Email: "x@example.com"},
	}}
	projects := &fakeProjects{projects: map[uuid.UUID]*models.Project{project.ID: project}}

	return NewAuthenticator(verifier, projects), project, "owner-token"
}

func TestAuthenticateSuccess(t *testing.T) {
	auth, project, tok := authFixture()

	identity, got, err := auth.Authenticate(context.Background(), tok, project.ID.String())
	require.NoError(t, err)
	assert.Equal(t, project.OwnerID.String(), identity.ID)
	assert.Equal(t, project.ID, got.ID)
}

func TestAuthenticateRejections(t *testing.T) {
	auth, project, tok := authFixture()

	cases := []struct {
		name       string
		token      string
		projectID  string
		wantReason string
		wantStatus int
	}{
		{"malformed project id", tok, "not-a-uuid", ReasonInvalidProject, http.StatusBadRequest},
		{"unknown project", tok, uuid.NewString(), ReasonProjectNotFound, http.StatusNotFound},
		{"missing token", "", project.ID.String(), ReasonMissingToken, http.StatusUnauthorized},
		{"bad token", "garbage", project.ID.String(), ReasonInvalidToken, http.StatusUnauthorized},
		{"non-member", "stranger-token", project.ID.String(), ReasonUnauthorized, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := auth.Authenticate(context.Background(), tc.token, tc.projectID)
			var rej *RejectError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tc.wantReason, rej.Reason)
			assert.Equal(t, tc.wantStatus, rej.Status)
		})
	}
}

// Two failure conditions at once must resolve in check order: an
// invalid project wins over a missing token, and an unknown project
// wins over a bad token.
func TestAuthenticateCheckOrder(t *testing.T) {
	auth, project, _ := authFixture()

	_, _, err := auth.Authenticate(context.Background(), "", "not-a-uuid")
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonInvalidProject, rej.Reason)

	_, _, err = auth.Authenticate(context.Background(), "garbage", uuid.NewString())
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonProjectNotFound, rej.Reason)

	_, _, err = auth.Authenticate(context.Background(), "", project.ID.String())
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonMissingToken, rej.Reason)
}

func TestAuthenticateStoreErrorIsNotARejection(t *testing.T) {
	verifier := &fakeVerifier{}
	projects := &fakeProjects{err: errors.New("db down")}
	auth := NewAuthenticator(verifier, projects)

	_, _, err := auth.Authenticate(context.Background(), "tok", uuid.NewString())
	require.Error(t, err)
	var rej *RejectError
	assert.False(t, errors.As(err, &rej))
}
