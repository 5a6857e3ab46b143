package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"csi_locks/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes session events onto a list consumed by the event worker.
type RedisPublisher struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisPublisher(rdb *redis.Client, queueName string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, queueName: queueName}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("RedisPublisher.Publish: %w", err)
	}
	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("RedisPublisher.Publish: %w", err)
	}
	return nil
}
