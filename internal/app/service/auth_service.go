package service

import (
	"context"
	"fmt"

	"csi_locks/internal/common"
	"csi_locks/internal/common/security"
	"csi_locks/pkg/logger"

	"go.uber.org/zap"
)

// AuthService exchanges the shared admin secret for a short-lived bearer token.
type AuthService struct {
	adminAuth  *security.AdminAuth
	secretHash string
}

// NewAuthService hashes the admin secret once so it is never compared in plain text.
func NewAuthService(adminAuth *security.AdminAuth, adminSecret string) (*AuthService, error) {
	hash, err := security.HashPassword(adminSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin secret: %w", err)
	}
	return &AuthService{adminAuth: adminAuth, secretHash: hash}, nil
}

type AdminLoginRequest struct {
	Secret string `json:"secret"`
}

type AdminLoginResponse struct {
	Token string `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, req AdminLoginRequest) (*AdminLoginResponse, error) {
	if req.Secret == "" {
		return nil, common.ErrBadRequest
	}
	if !s.CheckSecret(req.Secret) {
		logger.Log.Warn("admin login rejected")
		return nil, common.ErrUnauthorized
	}

	token, err := s.adminAuth.GenerateToken(security.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	logger.Log.Info("admin logged in", zap.String("role", security.RoleAdmin))
	return &AdminLoginResponse{Token: token}, nil
}

// CheckSecret reports whether secret matches the configured admin secret.
func (s *AuthService) CheckSecret(secret string) bool {
	return secret != "" && security.CheckPasswordHash(secret, s.secretHash)
}
