package service

import (
	"context"
	"testing"
	"time"

	"csi_locks/internal/common"
	"csi_locks/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	adminAuth := security.NewAdminAuth([]byte("jwt-key"), time.Hour)
	svc, err := NewAuthService(adminAuth, "tecstasy2026")
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), AdminLoginRequest{Secret: "tecstasy2026"})
	require.NoError(t, err)

	token, err := jwtauth.VerifyToken(adminAuth.TokenAuth, resp.Token)
	require.NoError(t, err)
	claims, err := token.AsMap(context.Background())
	require.NoError(t, err)
	role, err := security.GetRoleFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, security.RoleAdmin, role)
}

func TestAuthService_LoginRejected(t *testing.T) {
	svc, err := NewAuthService(security.NewAdminAuth([]byte("jwt-key"), time.Hour), "tecstasy2026")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), AdminLoginRequest{Secret: "guess"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(context.Background(), AdminLoginRequest{})
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestAuthService_CheckSecret(t *testing.T) {
	svc, err := NewAuthService(security.NewAdminAuth([]byte("jwt-key"), time.Hour), "tecstasy2026")
	require.NoError(t, err)

	assert.True(t, svc.CheckSecret("tecstasy2026"))
	assert.False(t, svc.CheckSecret("TECSTASY2026"))
	assert.False(t, svc.CheckSecret(""))
}
