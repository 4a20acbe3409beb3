package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devroom-sh/devroom/internal/models"
)

type fakeRevoker struct {
	revoked map[string]bool
}

func (f *fakeRevoker) IsRevoked(_ context.Context, token string) bool {
	return f.revoked[token]
}

func testUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)
	user := testUser()

	signed, err := m.Sign(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	identity, err := m.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID)
	assert.Equal(t, user.Email, identity.Email)
}

func TestVerifyMalformed(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)

	for _, raw := range []string{"", "not.a.token", "garbage"} {
		_, err := m.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", raw)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	m1 := NewManager("secret-one", time.Hour, nil)
	m2 := NewManager("secret-two", time.Hour, nil)

	signed, err := m1.Sign(testUser())
	require.NoError(t, err)

	_, err = m2.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, nil)

	signed, err := m.Sign(testUser())
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRevoked(t *testing.T) {
	revoker := &fakeRevoker{revoked: make(map[string]bool)}
	m := NewManager("test-secret", time.Hour, revoker)

	signed, err := m.Sign(testUser())
	require.NoError(t, err)

	// Valid until revoked
	_, err = m.Verify(context.Background(), signed)
	require.NoError(t, err)

	revoker.revoked[signed] = true
	_, err = m.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)

	// alg=none token with a plausible payload
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." +
		"eyJpZCI6IjEyMyIsImVtYWlsIjoiYUBiLmMifQ."
	_, err := m.Verify(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
