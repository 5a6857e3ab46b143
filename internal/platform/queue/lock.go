package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"csi_locks/internal/common"
	"csi_locks/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

const lockRetryInterval = 25 * time.Millisecond

// RedisLocker is a SET NX PX mutex shared by every API replica.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, wait: ttl}
}

// Lock blocks until the key is held, the wait budget runs out, or ctx ends.
// The returned func releases the lock and is safe to call once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	value := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, value, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("RedisLocker.Lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", fullKey, common.ErrLockNotAcquired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		// Release even if the request context was cancelled.
		deleted, err := releaseScript.Run(context.Background(), l.rdb, []string{fullKey}, value).Int64()
		if err != nil {
			logger.Log.Error("failed to release lock", zap.String("key", fullKey), zap.Error(err))
		} else if deleted == 0 {
			logger.Log.Warn("lock expired before release", zap.String("key", fullKey))
		}
	}, nil
}

// LocalLocker serializes by key inside one process. Used with the in-memory store.
// An entry lives only while someone holds or waits for its key.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	held chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Lock waits for key until ctx ends. The returned func is safe to call more than once.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{held: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.held
			l.release(key, lk)
		})
	}, nil
}

func (l *LocalLocker) release(key string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}
