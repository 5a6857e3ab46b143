package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"csi_locks/internal/common/security"
	"csi_locks/internal/domain/model"
	"csi_locks/internal/domain/repository"
	"csi_locks/internal/platform/queue"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SessionEvent
	sink   repository.SessionEventRepository
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	if p.sink != nil {
		return p.sink.Append(ctx, &ev)
	}
	return nil
}

func (p *recordingPublisher) ofType(typ model.SessionEventType) []model.SessionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.SessionEvent
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type noopLocker struct{}

func (noopLocker) Lock(ctx context.Context, key string) (func(), error) { return func() {}, nil }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// testBundle has one lock of each type at a fixed index; estimates sum to 480.
func testBundle(id, team string) *model.Bundle {
	one := 1
	return &model.Bundle{
		ID:     id,
		TeamID: team,
		Locks: []model.PuzzleSpec{
			{LockIndex: 0, Type: model.PuzzleLogic, Expected: "6", EstimateSeconds: 120, Difficulty: 1},
			{LockIndex: 1, Type: model.PuzzleCode, Expected: "12", EstimateSeconds: 90, Difficulty: 1},
			{LockIndex: 2, Type: model.PuzzleBlock, Expected: "A-B-C-D", EstimateSeconds: 150, Difficulty: 1},
			{LockIndex: 3, Type: model.PuzzleCipher, Expected: "LOCK", EstimateSeconds: 60, Difficulty: 1},
			{LockIndex: 4, Type: model.PuzzleMCQ, Questions: []model.MCQQuestion{
				{Question: "q", Options: []string{"a", "b"}, CorrectIndex: &one},
			}, EstimateSeconds: 60, Difficulty: 1},
		},
		Difficulty: 5,
		CreatedAt:  epoch,
	}
}

// correctAnswers lines up with testBundle.
var correctAnswers = []string{`6`, `"12"`, `"A-B-C-D"`, `"lock"`, `[1]`}

type fixture struct {
	store  *repository.MemoryStore
	svc    *SessionService
	clock  *fakeClock
	events *recordingPublisher
	guard  *security.TokenGuard
}

func newFixture(t *testing.T, cfg SessionConfig, locker TeamLocker) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Bundles().Create(context.Background(), testBundle("inst-1", "blue-team")))

	clock := &fakeClock{now: epoch}
	events := &recordingPublisher{sink: store.Events()}
	guard := security.NewTokenGuard([]byte("test-secret"))
	if locker == nil {
		locker = queue.NewLocalLocker()
	}
	cfg.Now = clock.Now
	cfg.NewID = sequentialIDs("id-")

	return &fixture{
		store:  store,
		svc:    NewSessionService(store.Bundles(), store.Sessions(), guard, locker, events, cfg),
		clock:  clock,
		events: events,
		guard:  guard,
	}
}

func (f *fixture) start(t *testing.T, team string) *CreateSessionResponse {
	t.Helper()
	resp, err := f.svc.CreateSession(context.Background(), CreateSessionRequest{InstanceID: "inst-1", TeamID: team})
	require.NoError(t, err)
	return resp
}
