package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hygienix/backend/internal/model"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", 0)
	assert.Equal(t, 7*24*time.Hour, m.TTL())

	token, err := m.Issue(Identity{ID: 42, Name: "Asha", Role: model.UserRoleCustomer, Email: "asha@example.com"})
	require.NoError(t, err)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: 42, Name: "Asha", Role: model.UserRoleCustomer, Email: "asha@example.com"}, id)
}

func TestVerify_EmptyTokenIsUnauthenticated(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	_, err := m.Verify("  ")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).Issue(Identity{ID: 1, Role: model.UserRoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(Identity{ID: 1, Role: model.UserRoleCustomer})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{ID: 1, Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoleIsFixedAtIssuance(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Issue(Identity{ID: 5, Role: model.UserRoleCustomer})
	require.NoError(t, err)

	// promotion in the store does not change what an existing token says
	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.ErrorIs(t, RequireRole(id, model.UserRoleAdmin), ErrForbidden)
}

func TestRequireRole(t *testing.T) {
	assert.NoError(t, RequireRole(Identity{Role: model.UserRoleAdmin}, model.UserRoleAdmin))
	assert.ErrorIs(t, RequireRole(Identity{Role: model.UserRoleCustomer}, model.UserRoleAdmin), ErrForbidden)
	assert.ErrorIs(t, RequireRole(Identity{}, model.UserRoleAdmin), ErrForbidden)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
