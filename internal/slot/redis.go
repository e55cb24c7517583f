package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/angelmondragon/lendcart/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Publish(ctx context.Context, channel string, payload any) error
	Ping(ctx context.Context) error
}

type subscribeFunc func(ctx context.Context, channel string) (<-chan pkgredis.Message, func() error, error)

// RedisSlot keeps the document in a Redis key and announces writes on a
// pub/sub channel. The message payload is the writer id.
type RedisSlot struct {
	store     redisStore
	subscribe subscribeFunc
	name      string
	writer    string
	key       string
	channel   string
}

// NewRedis builds a slot on the shared Redis client.
func NewRedis(client *pkgredis.Client, name, writer string) (*RedisSlot, error) {
	if client == nil {
		return nil, errors.New("redis client required for slot")
	}
	subscribe := func(ctx context.Context, channel string) (<-chan pkgredis.Message, func() error, error) {
		sub, err := client.Subscribe(ctx, channel)
		if err != nil {
			return nil, nil, err
		}
		return sub.Messages(), sub.Close, nil
	}
	return newRedisSlot(client, subscribe, name, writer, client.SlotKey(name), client.SlotChannel(name))
}

func newRedisSlot(store redisStore, subscribe subscribeFunc, name, writer, key, channel string) (*RedisSlot, error) {
	if name == "" {
		return nil, errors.New("slot name is required")
	}
	if writer == "" {
		return nil, errors.New("writer id is required")
	}
	return &RedisSlot{
		store:     store,
		subscribe: subscribe,
		name:      name,
		writer:    writer,
		key:       key,
		channel:   channel,
	}, nil
}

func (s *RedisSlot) Name() string { return s.name }

func (s *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	value, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, pkgredis.ErrNil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read slot %s: %w", s.name, err)
	}
	return []byte(value), nil
}

// Write stores payload without expiry, then publishes the writer id. A failed
// publish wraps ErrNotAnnounced.
func (s *RedisSlot) Write(ctx context.Context, payload []byte) error {
	if err := s.store.Set(ctx, s.key, string(payload), 0); err != nil {
		return fmt.Errorf("write slot %s: %w", s.name, err)
	}
	if err := s.store.Publish(ctx, s.channel, s.writer); err != nil {
		return fmt.Errorf("%w: slot %s: %w", ErrNotAnnounced, s.name, err)
	}
	return nil
}

func (s *RedisSlot) Watch(ctx context.Context) (<-chan Notice, error) {
	messages, closeFn, err := s.subscribe(ctx, s.channel)
	if err != nil {
		return nil, fmt.Errorf("watch slot %s: %w", s.name, err)
	}

	pending := make(chan Notice, 1)
	out := make(chan Notice)
	go func() {
		defer close(out)
		defer func() { _ = closeFn() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload == s.writer {
					continue
				}
				offer(pending, Notice{Writer: msg.Payload})
			case n := <-pending:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisSlot) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
