package repository

import (
	"context"
	"database/sql"
	"fmt"

	"csi_locks/internal/domain/model"
)

type SessionEventRepository interface {
	Append(ctx context.Context, ev *model.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]model.SessionEvent, error)
}

type pgSessionEventRepository struct {
	db *sql.DB
}

func NewPgSessionEventRepository(db *sql.DB) SessionEventRepository {
	return &pgSessionEventRepository{db: db}
}

// Append is idempotent on event id so a redelivered queue entry is harmless.
func (r *pgSessionEventRepository) Append(ctx context.Context, ev *model.SessionEvent) error {
	query := `INSERT INTO session_events (id, session_id, team_id, type, reason, lock_index, correct, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, ev.ID, ev.SessionID, ev.TeamID, string(ev.Type), ev.Reason,
		ev.LockIndex, ev.Correct, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgSessionEventRepository.Append: %w", err)
	}
	return nil
}

func (r *pgSessionEventRepository) ListBySession(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, team_id, type, reason, lock_index, correct, created_at
		 FROM session_events WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pgSessionEventRepository.ListBySession: %w", err)
	}
	defer rows.Close()

	events := []model.SessionEvent{}
	for rows.Next() {
		var ev model.SessionEvent
		var lockIndex sql.NullInt64
		var correct sql.NullBool
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TeamID, &ev.Type, &ev.Reason, &lockIndex, &correct, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSessionEventRepository.ListBySession: %w", err)
		}
		if lockIndex.Valid {
			idx := int(lockIndex.Int64)
			ev.LockIndex = &idx
		}
		if correct.Valid {
			c := correct.Bool
			ev.Correct = &c
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
