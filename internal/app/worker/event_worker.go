package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"csi_locks/internal/app/realtime"
	"csi_locks/internal/domain/model"
	"csi_locks/internal/domain/repository"
	"csi_locks/internal/platform/metrics"
	"csi_locks/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	popTimeout  = 5 * time.Second
	maxAttempts = 5
)

// queuedEvent is the list entry; Attempts is absent on first delivery.
type queuedEvent struct {
	model.SessionEvent
	Attempts int `json:"attempts,omitempty"`
}

// EventWorker drains the session event queue into the event store and the
// admin realtime feed.
type EventWorker struct {
	rdb       *redis.Client
	queueName string
	eventRepo repository.SessionEventRepository
	hub       *realtime.Hub
}

func NewEventWorker(rdb *redis.Client, queueName string, eventRepo repository.SessionEventRepository, hub *realtime.Hub) *EventWorker {
	return &EventWorker{rdb: rdb, queueName: queueName, eventRepo: eventRepo, hub: hub}
}

func (w *EventWorker) Start(ctx context.Context) {
	logger.Log.Info("event worker started", zap.String("queue", w.queueName))
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("event worker stopping")
			return
		default:
		}

		result, err := w.rdb.BRPop(ctx, popTimeout, w.queueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Log.Error("failed to BRPop event queue", zap.String("queue", w.queueName), zap.Error(err))
			sleep(ctx, 5*time.Second)
			continue
		}

		// result is [queueName, value]
		if len(result) < 2 || result[1] == "" {
			continue
		}
		w.process(ctx, result[1])
	}
}

func (w *EventWorker) process(ctx context.Context, raw string) {
	var qe queuedEvent
	if err := json.Unmarshal([]byte(raw), &qe); err != nil {
		metrics.EventsProcessed.WithLabelValues("unknown", "malformed").Inc()
		logger.Log.Error("dropping malformed event", zap.String("payload", raw), zap.Error(err))
		return
	}

	if err := w.Handle(ctx, qe.SessionEvent); err != nil {
		w.requeue(ctx, qe, err)
	}
}

// Handle persists ev and pushes it to connected dashboards.
func (w *EventWorker) Handle(ctx context.Context, ev model.SessionEvent) error {
	if err := w.eventRepo.Append(ctx, &ev); err != nil {
		metrics.EventsProcessed.WithLabelValues(string(ev.Type), "error").Inc()
		return fmt.Errorf("EventWorker.Handle: %w", err)
	}
	if w.hub != nil {
		w.hub.Broadcast(ev)
	}
	metrics.EventsProcessed.WithLabelValues(string(ev.Type), "ok").Inc()
	return nil
}

// Publish lets the worker stand in for the Redis queue when running without
// Redis: events are handled synchronously.
func (w *EventWorker) Publish(ctx context.Context, ev model.SessionEvent) error {
	return w.Handle(ctx, ev)
}

func (w *EventWorker) requeue(ctx context.Context, qe queuedEvent, cause error) {
	qe.Attempts++
	if qe.Attempts >= maxAttempts {
		metrics.EventsProcessed.WithLabelValues(string(qe.Type), "dropped").Inc()
		logger.Log.Error("dropping event after retries",
			zap.String("event_id", qe.ID), zap.Int("attempts", qe.Attempts), zap.Error(cause))
		return
	}

	payload, err := json.Marshal(qe)
	if err != nil {
		logger.Log.Error("failed to encode event for requeue", zap.String("event_id", qe.ID), zap.Error(err))
		return
	}
	// LPUSH puts it at the back of the line; BRPOP takes from the front.
	if err := w.rdb.LPush(ctx, w.queueName, payload).Err(); err != nil {
		logger.Log.Error("failed to requeue event", zap.String("event_id", qe.ID), zap.Error(err))
		return
	}
	logger.Log.Warn("event requeued",
		zap.String("event_id", qe.ID), zap.Int("attempts", qe.Attempts), zap.Error(cause))
	sleep(ctx, time.Second)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
