package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"csi_locks/internal/common"
	"csi_locks/internal/common/security"
	"csi_locks/internal/domain/model"
	"csi_locks/internal/domain/repository"
	"csi_locks/internal/platform/metrics"
	"csi_locks/pkg/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("csi_locks/internal/app/service")

const (
	DefaultFocusThreshold = 3
	unknownTeam           = "team_unknown"

	ReasonFlagged      = "session flagged"
	ReasonExpired      = "expired"
	ReasonLockNotFound = "lock not found"
)

// TeamLocker serializes session creation per team across replicas.
type TeamLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher hands audit events to the event pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}

type SessionConfig struct {
	FocusThreshold       int
	TotalSecondsOverride int // > 0 replaces the bundle estimate, for test runs
	Now                  func() time.Time
	NewID                func() string
}

type SessionService struct {
	bundleRepo  repository.BundleRepository
	sessionRepo repository.SessionRepository
	guard       *security.TokenGuard
	locker      TeamLocker
	events      EventPublisher
	cfg         SessionConfig
}

func NewSessionService(
	bundleRepo repository.BundleRepository,
	sessionRepo repository.SessionRepository,
	guard *security.TokenGuard,
	locker TeamLocker,
	events EventPublisher,
	cfg SessionConfig,
) *SessionService {
	if cfg.FocusThreshold <= 0 {
		cfg.FocusThreshold = DefaultFocusThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &SessionService{
		bundleRepo:  bundleRepo,
		sessionRepo: sessionRepo,
		guard:       guard,
		locker:      locker,
		events:      events,
		cfg:         cfg,
	}
}

type CreateSessionRequest struct {
	InstanceID string `json:"instance_id"`
	TeamID     string `json:"team_id"`
}

type CreateSessionResponse struct {
	SessionID     string `json:"session_id"`
	Token         string `json:"token"`
	AlreadyActive bool   `json:"already_active"`
}

// CreateSession starts the countdown for a team on a bundle. A team that
// still has time on another session gets that session back instead.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (resp *CreateSessionResponse, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.CreateSession")
	defer func() { endSpan(span, err) }()

	if req.InstanceID == "" {
		return nil, fmt.Errorf("instance_id is required: %w", common.ErrBadRequest)
	}

	bundle, err := s.bundleRepo.FindByID(ctx, req.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	team := NormalizeTeamID(req.TeamID)
	if team == "" {
		team = bundle.TeamID
	}
	if team == "" {
		team = unknownTeam
	}
	span.SetAttributes(attribute.String("team_id", team))

	unlock, err := s.locker.Lock(ctx, TeamLockKey(team))
	if err != nil {
		return nil, fmt.Errorf("failed to lock team %s: %w", team, err)
	}
	defer unlock()

	if existing, err := s.activeSession(ctx, team); err != nil || existing != nil {
		return existing, err
	}

	now := s.cfg.Now().UTC()
	total := s.totalSeconds(bundle)
	session := &model.Session{
		ID:               s.cfg.NewID(),
		BundleID:         bundle.ID,
		TeamID:           team,
		TotalSeconds:     total,
		RemainingSeconds: total,
		LastHeartbeat:    now,
		CreatedAt:        now,
	}
	session.Token = s.guard.Issue(session.ID)

	states := make([]model.SessionLockState, len(bundle.Locks))
	for i, l := range bundle.Locks {
		states[i] = model.SessionLockState{
			SessionID: session.ID,
			LockIndex: l.LockIndex,
			LockType:  l.Type,
			State:     model.LockStateLocked,
			UpdatedAt: now,
		}
	}

	if err := s.sessionRepo.Create(ctx, session, states); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Another replica won the race without our lock (e.g. Redis restart).
			existing, rerr := s.activeSession(ctx, team)
			if rerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.SessionsCreated.WithLabelValues("false").Inc()
	s.publish(ctx, model.SessionEvent{SessionID: session.ID, TeamID: team, Type: model.EventSessionCreated})
	logger.Log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("instance_id", bundle.ID),
		zap.String("team_id", team),
		zap.Int("total_seconds", total))

	return &CreateSessionResponse{SessionID: session.ID, Token: session.Token}, nil
}

func (s *SessionService) activeSession(ctx context.Context, team string) (*CreateSessionResponse, error) {
	existing, err := s.sessionRepo.FindActiveByTeam(ctx, team)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	metrics.SessionsCreated.WithLabelValues("true").Inc()
	logger.Log.Info("team already has an active session",
		zap.String("session_id", existing.ID), zap.String("team_id", team))
	return &CreateSessionResponse{SessionID: existing.ID, Token: existing.Token, AlreadyActive: true}, nil
}

func (s *SessionService) totalSeconds(bundle *model.Bundle) int {
	if s.cfg.TotalSecondsOverride > 0 {
		return s.cfg.TotalSecondsOverride
	}
	if total := bundle.TotalEstimateSeconds(); total > 0 {
		return total
	}
	return model.FallbackTotalSeconds
}

type SessionView struct {
	*model.Session
	States    []model.SessionLockState `json:"states"`
	Completed bool                     `json:"completed"`
	Expired   bool                     `json:"expired"`
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	states, err := s.sessionRepo.ListLockStates(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lock states: %w", err)
	}
	if states == nil {
		states = []model.SessionLockState{}
	}

	completed := len(states) > 0
	for _, st := range states {
		if st.State != model.LockStateUnlocked {
			completed = false
			break
		}
	}
	return &SessionView{Session: session, States: states, Completed: completed, Expired: session.Expired()}, nil
}

type HeartbeatResponse struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	Expired          bool `json:"expired"`
}

// Heartbeat charges the wall-clock time since the last checkpoint against the
// session. The client never reports elapsed time, so skipping heartbeats
// cannot pause the countdown.
func (s *SessionService) Heartbeat(ctx context.Context, sessionID string) (resp *HeartbeatResponse, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Heartbeat", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	var before int
	updated, err := s.sessionRepo.Update(ctx, sessionID, func(sess *model.Session) error {
		before = sess.RemainingSeconds
		chargeElapsed(sess, s.cfg.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Heartbeats.Inc()
	if before > 0 && updated.RemainingSeconds == 0 {
		metrics.SessionsExpired.Inc()
		logger.Log.Info("session expired", zap.String("session_id", sessionID), zap.String("team_id", updated.TeamID))
	}
	return &HeartbeatResponse{RemainingSeconds: updated.RemainingSeconds, Expired: updated.Expired()}, nil
}

// chargeElapsed deducts whole elapsed seconds and advances the checkpoint by
// exactly the charged amount, so sub-second remainders carry into the next
// heartbeat instead of being dropped.
func chargeElapsed(sess *model.Session, now time.Time) {
	elapsed := elapsedSeconds(sess, now)
	if elapsed == 0 {
		return
	}
	sess.RemainingSeconds = max(0, sess.RemainingSeconds-elapsed)
	sess.LastHeartbeat = sess.LastHeartbeat.Add(time.Duration(elapsed) * time.Second)
}

func elapsedSeconds(sess *model.Session, now time.Time) int {
	return max(0, int(now.Sub(sess.LastHeartbeat)/time.Second))
}

// remainingAt is what a heartbeat at now would leave, without moving the checkpoint.
func remainingAt(sess *model.Session, now time.Time) int {
	return max(0, sess.RemainingSeconds-elapsedSeconds(sess, now))
}

type FocusRequest struct {
	Lost   bool   `json:"lost"`
	Reason string `json:"reason"`
}

type FocusResponse struct {
	OK             bool  `json:"ok"`
	FocusLostCount *int  `json:"focus_lost_count,omitempty"`
	Flagged        *bool `json:"flagged,omitempty"`
}

var knownFocusReasons = map[string]bool{
	"visibility_hidden": true,
	"window_blur":       true,
	"copy":              true,
	"paste":             true,
	"contextmenu":       true,
	"unload":            true,
}

// RecordFocus counts a focus-loss signal and flags the session once the
// threshold is reached. A regained-focus signal changes nothing.
func (s *SessionService) RecordFocus(ctx context.Context, sessionID string, req FocusRequest) (resp *FocusResponse, err error) {
	if !req.Lost {
		return &FocusResponse{OK: true}, nil
	}

	ctx, span := tracer.Start(ctx, "SessionService.RecordFocus", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	var newlyFlagged bool
	updated, err := s.sessionRepo.Update(ctx, sessionID, func(sess *model.Session) error {
		sess.FocusLostCount++
		if !sess.Flagged && sess.FocusLostCount >= s.cfg.FocusThreshold {
			sess.Flagged = true
			newlyFlagged = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	label := reason
	if !knownFocusReasons[label] {
		label = "other"
	}
	metrics.FocusLost.WithLabelValues(label).Inc()
	s.publish(ctx, model.SessionEvent{SessionID: sessionID, TeamID: updated.TeamID, Type: model.EventFocusLost, Reason: truncate(reason, 64)})

	if newlyFlagged {
		metrics.SessionsFlagged.WithLabelValues("focus").Inc()
		s.publish(ctx, model.SessionEvent{
			SessionID: sessionID,
			TeamID:    updated.TeamID,
			Type:      model.EventFlagged,
			Reason:    "focus lost " + strconv.Itoa(updated.FocusLostCount) + " times",
		})
		logger.Log.Warn("session flagged",
			zap.String("session_id", sessionID),
			zap.String("team_id", updated.TeamID),
			zap.Int("focus_lost_count", updated.FocusLostCount))
	}

	count, flagged := updated.FocusLostCount, updated.Flagged
	return &FocusResponse{OK: true, FocusLostCount: &count, Flagged: &flagged}, nil
}

type SubmitAnswerRequest struct {
	LockIndex *int            `json:"lock_index"`
	Answer    json.RawMessage `json:"answer"`
}

type SubmitAnswerResult struct {
	OK      bool            `json:"ok"`
	Correct *bool           `json:"correct,omitempty"`
	State   model.LockState `json:"state,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

func rejected(reason string) *SubmitAnswerResult {
	return &SubmitAnswerResult{OK: false, Reason: reason}
}

// SubmitAnswer grades one lock. Flagged and expired sessions are rejected
// before grading; every graded attempt is stored, right or wrong. Expiry is
// judged on the server clock, so a client that stops sending heartbeats still
// runs out of time.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID string, req SubmitAnswerRequest) (result *SubmitAnswerResult, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.SubmitAnswer", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer func() { endSpan(span, err) }()

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	bundle, err := s.bundleRepo.FindByID(ctx, session.BundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance for session: %w", err)
	}

	answer := req.Answer
	if len(answer) == 0 {
		answer = json.RawMessage("null")
	}
	lockIndex := -1
	if req.LockIndex != nil {
		lockIndex = *req.LockIndex
	}

	var lock model.PuzzleSpec
	err = s.sessionRepo.UpdateLockState(ctx, sessionID, lockIndex, func(sess *model.Session, st *model.SessionLockState) (bool, error) {
		session = sess
		switch {
		case sess.Flagged:
			result = rejected(ReasonFlagged)
			return false, nil
		case remainingAt(sess, s.cfg.Now()) <= 0:
			result = rejected(ReasonExpired)
			return false, nil
		}

		var ok bool
		lock, ok = bundle.LockAt(lockIndex)
		if !ok || st == nil {
			result = rejected(ReasonLockNotFound)
			return false, nil
		}

		correct := Grade(lock, answer)
		st.State = model.LockStateFailed
		if correct {
			st.State = model.LockStateUnlocked
		}
		st.Answer = answer
		st.UpdatedAt = s.cfg.Now().UTC()
		result = &SubmitAnswerResult{OK: true, Correct: &correct, State: st.State}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if !result.OK {
		metrics.Answers.WithLabelValues("none", outcomeLabel(result.Reason)).Inc()
		return result, nil
	}

	outcome := "incorrect"
	if *result.Correct {
		outcome = "correct"
	}
	metrics.Answers.WithLabelValues(string(lock.Type), outcome).Inc()
	s.publish(ctx, model.SessionEvent{
		SessionID: sessionID,
		TeamID:    session.TeamID,
		Type:      model.EventAnswer,
		LockIndex: &lockIndex,
		Correct:   result.Correct,
	})
	return result, nil
}

func outcomeLabel(reason string) string {
	switch reason {
	case ReasonFlagged:
		return "flagged"
	case ReasonExpired:
		return "expired"
	default:
		return "lock_not_found"
	}
}

// publish never fails the caller; the audit trail is best effort.
func (s *SessionService) publish(ctx context.Context, ev model.SessionEvent) {
	publishEvent(ctx, s.events, s.cfg.NewID, s.cfg.Now, ev)
}

func publishEvent(ctx context.Context, events EventPublisher, newID func() string, now func() time.Time, ev model.SessionEvent) {
	if events == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now().UTC()
	}
	if err := events.Publish(ctx, ev); err != nil {
		logger.Log.Error("failed to publish session event",
			zap.String("session_id", ev.SessionID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}

// NormalizeTeamID keeps team ids exact; only a blank id counts as missing.
// "Team Alpha" and "team-alpha" are different teams.
func NormalizeTeamID(teamID string) string {
	if strings.TrimSpace(teamID) == "" {
		return ""
	}
	return teamID
}

// TeamLockKey is the creation-lock key for a team. Teams whose slugs collide
// share a lock, which only serializes their creation.
func TeamLockKey(team string) string {
	if key := slug.Make(team); key != "" {
		return key
	}
	return team
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
