package repository

import (
	"context"
	"testing"
	"time"

	"csi_locks/internal/common"
	"csi_locks/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

func newSession(id, team string, remaining int) *model.Session {
	return &model.Session{
		ID:               id,
		BundleID:         "inst-1",
		TeamID:           team,
		Token:            id + ".sig",
		TotalSeconds:     480,
		RemainingSeconds: remaining,
		LastHeartbeat:    t0,
		CreatedAt:        t0,
	}
}

func lockedStates(n int) []model.SessionLockState {
	states := make([]model.SessionLockState, n)
	for i := range states {
		states[n-1-i] = model.SessionLockState{LockIndex: i, LockType: model.PuzzleLogic, State: model.LockStateLocked, UpdatedAt: t0}
	}
	return states
}

func TestMemorySessions_OneActivePerTeam(t *testing.T) {
	repo := NewMemoryStore().Sessions()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s1", "alpha", 480), lockedStates(5)))
	err := repo.Create(ctx, newSession("s2", "alpha", 480), lockedStates(5))
	assert.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, repo.Create(ctx, newSession("s3", "beta", 480), nil))

	_, err = repo.Update(ctx, "s1", func(s *model.Session) error {
		s.RemainingSeconds = 0
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newSession("s2", "alpha", 480), nil))

	active, err := repo.FindActiveByTeam(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "s2", active.ID)

	_, err = repo.FindActiveByTeam(ctx, "gamma")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemorySessions_LockStatesOrderedAndIsolated(t *testing.T) {
	repo := NewMemoryStore().Sessions()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alpha", 480), lockedStates(5)))

	states, err := repo.ListLockStates(ctx, "s1")
	require.NoError(t, err)
	for i, st := range states {
		assert.Equal(t, i, st.LockIndex)
		assert.Equal(t, "s1", st.SessionID)
	}

	states[0].State = model.LockStateUnlocked
	again, err := repo.ListLockStates(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.LockStateLocked, again[0].State)
}

func TestMemorySessions_UpdateLockState(t *testing.T) {
	repo := NewMemoryStore().Sessions()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alpha", 480), lockedStates(5)))

	err := repo.UpdateLockState(ctx, "s1", 2, func(s *model.Session, st *model.SessionLockState) (bool, error) {
		require.NotNil(t, st)
		assert.Equal(t, "alpha", s.TeamID)
		st.State = model.LockStateFailed
		st.Answer = []byte(`"x"`)
		return true, nil
	})
	require.NoError(t, err)

	err = repo.UpdateLockState(ctx, "s1", 3, func(s *model.Session, st *model.SessionLockState) (bool, error) {
		st.State = model.LockStateUnlocked
		return false, nil
	})
	require.NoError(t, err)

	err = repo.UpdateLockState(ctx, "s1", 9, func(s *model.Session, st *model.SessionLockState) (bool, error) {
		assert.Nil(t, st)
		return true, nil
	})
	require.NoError(t, err)

	states, err := repo.ListLockStates(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.LockStateFailed, states[2].State)
	assert.Equal(t, `"x"`, string(states[2].Answer))
	assert.Equal(t, model.LockStateLocked, states[3].State)

	err = repo.UpdateLockState(ctx, "nope", 0, func(*model.Session, *model.SessionLockState) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemorySessions_UpdateErrorDiscardsChanges(t *testing.T) {
	repo := NewMemoryStore().Sessions()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alpha", 480), nil))

	_, err := repo.Update(ctx, "s1", func(s *model.Session) error {
		s.Flagged = true
		return common.ErrValidation
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	s, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s.Flagged)
}

func TestMemoryEvents_DedupByID(t *testing.T) {
	repo := NewMemoryStore().Events()
	ctx := context.Background()

	ev := &model.SessionEvent{ID: "e1", SessionID: "s1", Type: model.EventFocusLost, CreatedAt: t0}
	require.NoError(t, repo.Append(ctx, ev))
	require.NoError(t, repo.Append(ctx, ev))
	require.NoError(t, repo.Append(ctx, &model.SessionEvent{ID: "e2", SessionID: "s1", Type: model.EventFlagged}))

	events, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	none, err := repo.ListBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryBundles(t *testing.T) {
	repo := NewMemoryStore().Bundles()
	ctx := context.Background()

	b := &model.Bundle{ID: "b1", TeamID: "alpha", Locks: []model.PuzzleSpec{{Type: model.PuzzleCipher}}}
	require.NoError(t, repo.Create(ctx, b))
	assert.ErrorIs(t, repo.Create(ctx, b), common.ErrConflict)

	got, err := repo.FindByID(ctx, "b1")
	require.NoError(t, err)
	got.Locks[0].Type = model.PuzzleMCQ

	again, err := repo.FindByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.PuzzleCipher, again.Locks[0].Type)

	_, err = repo.FindByID(ctx, "b2")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
