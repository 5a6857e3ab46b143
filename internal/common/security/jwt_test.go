package security

import (
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuth_GenerateToken(t *testing.T) {
	auth := NewAdminAuth([]byte("jwt-key"), time.Hour)

	tokenString, err := auth.GenerateToken("judge")
	require.NoError(t, err)

	token, err := jwtauth.VerifyToken(auth.TokenAuth, tokenString)
	require.NoError(t, err)

	claims, err := token.AsMap(t.Context())
	require.NoError(t, err)

	sub, err := GetSubjectFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "judge", sub)

	role, err := GetRoleFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
}

func TestAdminAuth_ExpiredTokenRejected(t *testing.T) {
	auth := NewAdminAuth([]byte("jwt-key"), time.Minute)
	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tokenString, err := auth.GenerateToken("judge")
	require.NoError(t, err)

	_, err = jwtauth.VerifyToken(auth.TokenAuth, tokenString)
	assert.Error(t, err)
}

func TestAdminAuth_WrongKeyRejected(t *testing.T) {
	tokenString, err := NewAdminAuth([]byte("key-a"), time.Hour).GenerateToken("judge")
	require.NoError(t, err)

	_, err = jwtauth.VerifyToken(NewAdminAuth([]byte("key-b"), time.Hour).TokenAuth, tokenString)
	assert.Error(t, err)
}

func TestClaimHelpers_MissingClaims(t *testing.T) {
	_, err := GetSubjectFromClaims(jwt.MapClaims{})
	assert.Error(t, err)

	_, err = GetRoleFromClaims(jwt.MapClaims{"role": 7})
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("tecstasy2026")
	require.NoError(t, err)
	assert.NotEqual(t, "tecstasy2026", hash)

	assert.True(t, CheckPasswordHash("tecstasy2026", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("tecstasy2026", "not-a-hash"))
}
