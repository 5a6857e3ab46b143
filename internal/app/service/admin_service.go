package service

import (
	"context"
	"fmt"
	"time"

	"csi_locks/internal/domain/model"
	"csi_locks/internal/domain/repository"
	"csi_locks/internal/platform/metrics"
	"csi_locks/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminService is the judges' view over running sessions.
type AdminService struct {
	sessionRepo repository.SessionRepository
	eventRepo   repository.SessionEventRepository
	events      EventPublisher
	now         func() time.Time
}

func NewAdminService(sessionRepo repository.SessionRepository, eventRepo repository.SessionEventRepository, events EventPublisher) *AdminService {
	return &AdminService{sessionRepo: sessionRepo, eventRepo: eventRepo, events: events, now: time.Now}
}

type ActiveSessionsResponse struct {
	TotalSessions int                    `json:"total_sessions"`
	Sessions      []model.SessionSummary `json:"sessions"`
	Timestamp     time.Time              `json:"timestamp"`
}

func (s *AdminService) ListActiveSessions(ctx context.Context) (*ActiveSessionsResponse, error) {
	sessions, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return &ActiveSessionsResponse{TotalSessions: len(sessions), Sessions: sessions, Timestamp: s.now().UTC()}, nil
}

type SessionDetailResponse struct {
	Session    *model.Session           `json:"session"`
	LockStates []model.SessionLockState `json:"lock_states"`
	Events     []model.SessionEvent     `json:"events"`
	Timestamp  time.Time                `json:"timestamp"`
}

func (s *AdminService) GetSessionDetail(ctx context.Context, sessionID string) (*SessionDetailResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	states, err := s.sessionRepo.ListLockStates(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lock states: %w", err)
	}
	events, err := s.eventRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if states == nil {
		states = []model.SessionLockState{}
	}
	return &SessionDetailResponse{Session: session, LockStates: states, Events: events, Timestamp: s.now().UTC()}, nil
}

type FlagSessionRequest struct {
	Reason    string `json:"reason"`
	FlaggedBy string `json:"-"`
}

type FlagSessionResponse struct {
	Success bool           `json:"success"`
	Session *model.Session `json:"session"`
}

// FlagSession locks a session out by hand. Flagging is one-way.
func (s *AdminService) FlagSession(ctx context.Context, sessionID string, req FlagSessionRequest) (*FlagSessionResponse, error) {
	updated, err := s.sessionRepo.Update(ctx, sessionID, func(sess *model.Session) error {
		sess.Flagged = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "not provided"
	}
	metrics.SessionsFlagged.WithLabelValues("admin").Inc()
	publishEvent(ctx, s.events, uuid.NewString, s.now, model.SessionEvent{
		SessionID: sessionID,
		TeamID:    updated.TeamID,
		Type:      model.EventAdminFlag,
		Reason:    truncate(reason, 256),
	})
	logger.Log.Warn("session flagged by admin",
		zap.String("session_id", sessionID),
		zap.String("team_id", updated.TeamID),
		zap.String("reason", reason),
		zap.String("flagged_by", req.FlaggedBy))

	return &FlagSessionResponse{Success: true, Session: updated}, nil
}
