package model

import (
	"encoding/json"
	"time"
)

type LockState string

const (
	LockStateLocked   LockState = "locked"   // never attempted
	LockStateFailed   LockState = "failed"   // last attempt wrong, retry allowed
	LockStateUnlocked LockState = "unlocked" // solved
)

type Session struct {
	ID               string    `json:"id"`
	BundleID         string    `json:"instance_id"`
	TeamID           string    `json:"team_id"`
	Token            string    `json:"-"`
	TotalSeconds     int       `json:"total_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	FocusLostCount   int       `json:"focus_lost_count"`
	Flagged          bool      `json:"flagged"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Session) Expired() bool {
	return s.RemainingSeconds <= 0
}

type SessionLockState struct {
	SessionID string          `json:"-"`
	LockIndex int             `json:"lock_index"`
	LockType  PuzzleType      `json:"lock_type"`
	State     LockState       `json:"state"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionSummary is the admin listing row.
type SessionSummary struct {
	ID               string    `json:"id"`
	TeamID           string    `json:"team_id"`
	TotalSeconds     int       `json:"total_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	FocusLostCount   int       `json:"focus_lost_count"`
	Flagged          bool      `json:"flagged"`
	LocksSolved      int       `json:"locks_solved"`
	CreatedAt        time.Time `json:"created_at"`
}

type SessionEventType string

const (
	EventSessionCreated SessionEventType = "session_created"
	EventFocusLost      SessionEventType = "focus_lost"
	EventFlagged        SessionEventType = "flagged"
	EventAnswer         SessionEventType = "answer"
	EventAdminFlag      SessionEventType = "admin_flag"
)

type SessionEvent struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	TeamID    string           `json:"team_id"`
	Type      SessionEventType `json:"type"`
	Reason    string           `json:"reason,omitempty"`
	LockIndex *int             `json:"lock_index,omitempty"`
	Correct   *bool            `json:"correct,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
