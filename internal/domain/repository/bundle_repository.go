package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"csi_locks/internal/common"
	"csi_locks/internal/domain/model"
)

type BundleRepository interface {
	Create(ctx context.Context, bundle *model.Bundle) error
	FindByID(ctx context.Context, id string) (*model.Bundle, error)
}

type pgBundleRepository struct {
	db *sql.DB
}

func NewPgBundleRepository(db *sql.DB) BundleRepository {
	return &pgBundleRepository{db: db}
}

// Create stores the whole bundle as one JSON document; bundles are never updated.
func (r *pgBundleRepository) Create(ctx context.Context, bundle *model.Bundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("pgBundleRepository.Create: %w", err)
	}
	query := `INSERT INTO instances (id, team_id, payload, difficulty, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query, bundle.ID, bundle.TeamID, string(payload), bundle.Difficulty, bundle.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("instance %s already exists: %w", bundle.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgBundleRepository.Create: %w", err)
	}
	return nil
}

func (r *pgBundleRepository) FindByID(ctx context.Context, id string) (*model.Bundle, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM instances WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgBundleRepository.FindByID: %w", err)
	}
	bundle := &model.Bundle{}
	if err := json.Unmarshal(payload, bundle); err != nil {
		return nil, fmt.Errorf("pgBundleRepository.FindByID: decode payload: %w", err)
	}
	return bundle, nil
}
