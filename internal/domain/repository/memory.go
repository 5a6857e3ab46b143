package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"csi_locks/internal/common"
	"csi_locks/internal/domain/model"
)

// MemoryStore backs all repositories with process-local maps. It mirrors the
// Postgres constraints, including one active session per team.
type MemoryStore struct {
	mu       sync.Mutex
	bundles  map[string]model.Bundle
	sessions map[string]model.Session
	states   map[string][]model.SessionLockState
	events   map[string][]model.SessionEvent
	eventIDs map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles:  make(map[string]model.Bundle),
		sessions: make(map[string]model.Session),
		states:   make(map[string][]model.SessionLockState),
		events:   make(map[string][]model.SessionEvent),
		eventIDs: make(map[string]struct{}),
	}
}

func (m *MemoryStore) Bundles() BundleRepository      { return memoryBundles{m} }
func (m *MemoryStore) Sessions() SessionRepository    { return memorySessions{m} }
func (m *MemoryStore) Events() SessionEventRepository { return memoryEvents{m} }

type memoryBundles struct{ m *MemoryStore }

func (r memoryBundles) Create(ctx context.Context, bundle *model.Bundle) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.bundles[bundle.ID]; exists {
		return fmt.Errorf("instance %s already exists: %w", bundle.ID, common.ErrConflict)
	}
	r.m.bundles[bundle.ID] = cloneBundle(*bundle)
	return nil
}

func (r memoryBundles) FindByID(ctx context.Context, id string) (*model.Bundle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bundles[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, common.ErrNotFound)
	}
	out := cloneBundle(b)
	return &out, nil
}

type memorySessions struct{ m *MemoryStore }

func (r memorySessions) Create(ctx context.Context, s *model.Session, states []model.SessionLockState) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists: %w", s.ID, common.ErrConflict)
	}
	if s.RemainingSeconds > 0 {
		for _, other := range r.m.sessions {
			if other.TeamID == s.TeamID && other.RemainingSeconds > 0 {
				return fmt.Errorf("team %s already has an active session: %w", s.TeamID, common.ErrConflict)
			}
		}
	}
	r.m.sessions[s.ID] = *s
	rows := make([]model.SessionLockState, len(states))
	for i, st := range states {
		st.SessionID = s.ID
		rows[i] = st
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LockIndex < rows[j].LockIndex })
	r.m.states[s.ID] = rows
	return nil
}

func (r memorySessions) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	return &s, nil
}

func (r memorySessions) FindActiveByTeam(ctx context.Context, teamID string) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *model.Session
	for _, s := range r.m.sessions {
		if s.TeamID != teamID || s.RemainingSeconds <= 0 {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			s := s
			found = &s
		}
	}
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found, nil
}

func (r memorySessions) ListLockStates(ctx context.Context, sessionID string) ([]model.SessionLockState, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.m.states[sessionID]
	out := make([]model.SessionLockState, len(rows))
	copy(out, rows)
	return out, nil
}

func (r memorySessions) Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	r.m.sessions[id] = s
	return &s, nil
}

func (r memorySessions) UpdateLockState(ctx context.Context, sessionID string, lockIndex int, fn LockStateUpdateFunc) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}

	rows := r.m.states[sessionID]
	pos := -1
	var st *model.SessionLockState
	for i := range rows {
		if rows[i].LockIndex == lockIndex {
			pos = i
			row := rows[i]
			st = &row
			break
		}
	}

	write, err := fn(&s, st)
	if err != nil {
		return err
	}
	if write && st != nil {
		rows[pos] = *st
	}
	return nil
}

func (r memorySessions) ListActive(ctx context.Context) ([]model.SessionSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.SessionSummary{}
	for _, s := range r.m.sessions {
		if s.RemainingSeconds <= 0 {
			continue
		}
		solved := 0
		for _, st := range r.m.states[s.ID] {
			if st.State == model.LockStateUnlocked {
				solved++
			}
		}
		out = append(out, model.SessionSummary{
			ID:               s.ID,
			TeamID:           s.TeamID,
			TotalSeconds:     s.TotalSeconds,
			RemainingSeconds: s.RemainingSeconds,
			FocusLostCount:   s.FocusLostCount,
			Flagged:          s.Flagged,
			LocksSolved:      solved,
			CreatedAt:        s.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryEvents struct{ m *MemoryStore }

func (r memoryEvents) Append(ctx context.Context, ev *model.SessionEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, seen := r.m.eventIDs[ev.ID]; seen {
		return nil
	}
	r.m.eventIDs[ev.ID] = struct{}{}
	r.m.events[ev.SessionID] = append(r.m.events[ev.SessionID], *ev)
	return nil
}

func (r memoryEvents) ListBySession(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]model.SessionEvent, len(r.m.events[sessionID]))
	copy(out, r.m.events[sessionID])
	return out, nil
}

func cloneBundle(b model.Bundle) model.Bundle {
	b.Locks = append([]model.PuzzleSpec(nil), b.Locks...)
	return b
}
