package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"csi_locks/internal/common"
	"csi_locks/internal/domain/model"
)

// LockStateUpdateFunc runs with the session row locked. st is nil when the
// session has no state row at that index. Returning write == false leaves the
// state row untouched.
type LockStateUpdateFunc func(s *model.Session, st *model.SessionLockState) (write bool, err error)

type SessionRepository interface {
	// Create inserts the session and its lock states atomically. A second
	// active session for the same team fails with common.ErrConflict.
	Create(ctx context.Context, s *model.Session, states []model.SessionLockState) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindActiveByTeam(ctx context.Context, teamID string) (*model.Session, error)
	ListLockStates(ctx context.Context, sessionID string) ([]model.SessionLockState, error)
	// Update applies fn to the session under a row lock and persists the
	// timer, focus and flag fields.
	Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error)
	UpdateLockState(ctx context.Context, sessionID string, lockIndex int, fn LockStateUpdateFunc) error
	ListActive(ctx context.Context) ([]model.SessionSummary, error)
}

type pgSessionRepository struct {
	db *sql.DB
}

func NewPgSessionRepository(db *sql.DB) SessionRepository {
	return &pgSessionRepository{db: db}
}

const sessionColumns = `id, instance_id, team_id, token, total_seconds, remaining_seconds,
	last_heartbeat, focus_lost_count, flagged, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.BundleID, &s.TeamID, &s.Token, &s.TotalSeconds, &s.RemainingSeconds,
		&s.LastHeartbeat, &s.FocusLostCount, &s.Flagged, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *pgSessionRepository) Create(ctx context.Context, s *model.Session, states []model.SessionLockState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.Create: begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO sessions (` + sessionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, query, s.ID, s.BundleID, s.TeamID, s.Token, s.TotalSeconds, s.RemainingSeconds,
		s.LastHeartbeat, s.FocusLostCount, s.Flagged, s.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("team %s already has an active session: %w", s.TeamID, common.ErrConflict)
		}
		return fmt.Errorf("pgSessionRepository.Create: %w", err)
	}

	for _, st := range states {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_states (session_id, lock_index, lock_type, state, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			s.ID, st.LockIndex, string(st.LockType), string(st.State), st.UpdatedAt)
		if err != nil {
			return fmt.Errorf("pgSessionRepository.Create: lock state %d: %w", st.LockIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgSessionRepository.Create: commit: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgSessionRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *pgSessionRepository) FindActiveByTeam(ctx context.Context, teamID string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
	          WHERE team_id = $1 AND remaining_seconds > 0
	          ORDER BY created_at DESC LIMIT 1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, teamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSessionRepository.FindActiveByTeam: %w", err)
	}
	return s, nil
}

func (r *pgSessionRepository) ListLockStates(ctx context.Context, sessionID string) ([]model.SessionLockState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT lock_index, lock_type, state, answer, updated_at FROM session_states
		 WHERE session_id = $1 ORDER BY lock_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.ListLockStates: %w", err)
	}
	defer rows.Close()

	var states []model.SessionLockState
	for rows.Next() {
		st := model.SessionLockState{SessionID: sessionID}
		var answer []byte
		if err := rows.Scan(&st.LockIndex, &st.LockType, &st.State, &answer, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgSessionRepository.ListLockStates: %w", err)
		}
		if len(answer) > 0 {
			st.Answer = answer
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func (r *pgSessionRepository) Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.Update: begin: %w", err)
	}
	defer tx.Rollback()

	s, err := r.lockSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET remaining_seconds = $1, last_heartbeat = $2, focus_lost_count = $3, flagged = $4 WHERE id = $5`,
		s.RemainingSeconds, s.LastHeartbeat, s.FocusLostCount, s.Flagged, s.ID)
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.Update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pgSessionRepository.Update: commit: %w", err)
	}
	return s, nil
}

func (r *pgSessionRepository) UpdateLockState(ctx context.Context, sessionID string, lockIndex int, fn LockStateUpdateFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.UpdateLockState: begin: %w", err)
	}
	defer tx.Rollback()

	s, err := r.lockSession(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	var st *model.SessionLockState
	row := model.SessionLockState{SessionID: sessionID}
	var answer []byte
	err = tx.QueryRowContext(ctx,
		`SELECT lock_index, lock_type, state, answer, updated_at FROM session_states
		 WHERE session_id = $1 AND lock_index = $2`, sessionID, lockIndex).
		Scan(&row.LockIndex, &row.LockType, &row.State, &answer, &row.UpdatedAt)
	switch {
	case err == nil:
		row.Answer = answer
		st = &row
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("pgSessionRepository.UpdateLockState: %w", err)
	}

	write, err := fn(s, st)
	if err != nil {
		return err
	}
	if !write || st == nil {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE session_states SET state = $1, answer = $2, updated_at = $3 WHERE session_id = $4 AND lock_index = $5`,
		string(st.State), nullableJSON(st.Answer), st.UpdatedAt, sessionID, lockIndex)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.UpdateLockState: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgSessionRepository.UpdateLockState: commit: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) ListActive(ctx context.Context) ([]model.SessionSummary, error) {
	query := `SELECT s.id, s.team_id, s.total_seconds, s.remaining_seconds, s.focus_lost_count, s.flagged, s.created_at,
	                 COUNT(st.lock_index) FILTER (WHERE st.state = 'unlocked') AS locks_solved
	          FROM sessions s
	          LEFT JOIN session_states st ON st.session_id = s.id
	          WHERE s.remaining_seconds > 0
	          GROUP BY s.id
	          ORDER BY s.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.ListActive: %w", err)
	}
	defer rows.Close()

	summaries := []model.SessionSummary{}
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.ID, &s.TeamID, &s.TotalSeconds, &s.RemainingSeconds, &s.FocusLostCount,
			&s.Flagged, &s.CreatedAt, &s.LocksSolved); err != nil {
			return nil, fmt.Errorf("pgSessionRepository.ListActive: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *pgSessionRepository) lockSession(ctx context.Context, tx *sql.Tx, id string) (*model.Session, error) {
	s, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgSessionRepository.lockSession: %w", err)
	}
	return s, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
