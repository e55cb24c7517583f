package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/lendcart/pkg/redis"
)

const defaultLockTTL = 2 * time.Minute

// Lock coordinates exclusive checkout runs. Acquire returns a token that
// must be handed back to Release.
type Lock interface {
	Acquire(ctx context.Context) (string, bool, error)
	Release(ctx context.Context, token string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock using Redis SETNX + TTL, so that every context
// sharing the slot sees the same lock.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return "", false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return owner, true, nil
}

// Release frees the lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, pkgredis.ErrNil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != token {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

// LocalLock is the in-process Lock for single-process slot drivers.
type LocalLock struct {
	mu    sync.Mutex
	owner string
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(context.Context) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return "", false, nil
	}
	l.owner = uuid.NewString()
	return l.owner, true, nil
}

func (l *LocalLock) Release(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != "" && token == l.owner {
		l.owner = ""
	}
	return nil
}
