package service

import (
	"context"
	"fmt"

	"csi_locks/internal/domain/model"
	"csi_locks/internal/domain/repository"
	"csi_locks/pkg/logger"

	"go.uber.org/zap"
)

// BundleGenerator produces a fresh puzzle bundle for a team.
type BundleGenerator interface {
	Generate(teamID string) *model.Bundle
}

type BundleService struct {
	bundleRepo repository.BundleRepository
	generator  BundleGenerator
	newID      func() string
	redact     bool
}

func NewBundleService(bundleRepo repository.BundleRepository, generator BundleGenerator, newID func() string, redact bool) *BundleService {
	return &BundleService{bundleRepo: bundleRepo, generator: generator, newID: newID, redact: redact}
}

type CreateBundleRequest struct {
	TeamID string `json:"team_id"`
}

type CreateBundleResponse struct {
	InstanceID string `json:"instance_id"`
	TeamID     string `json:"team_id"`
}

func (s *BundleService) CreateBundle(ctx context.Context, req CreateBundleRequest) (*CreateBundleResponse, error) {
	team := NormalizeTeamID(req.TeamID)
	if team == "" {
		suffix := s.newID()
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		team = "team-" + suffix
	}

	bundle := s.generator.Generate(team)
	if err := s.bundleRepo.Create(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to store instance: %w", err)
	}

	logger.Log.Info("instance created",
		zap.String("instance_id", bundle.ID),
		zap.String("team_id", team),
		zap.Int("difficulty", bundle.Difficulty))
	return &CreateBundleResponse{InstanceID: bundle.ID, TeamID: team}, nil
}

// GetBundle returns the bundle as stored, or with answers stripped when
// redaction is configured.
func (s *BundleService) GetBundle(ctx context.Context, id string) (*model.Bundle, error) {
	bundle, err := s.bundleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.redact {
		return bundle.Redacted(), nil
	}
	return bundle, nil
}
