package persist

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists snapshots as Redis strings.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl stores snapshots without expiry. The store
// takes ownership of client and closes it on Close.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix, ttl: ttl}
}

// Load implements cache.Store.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CategoryExternal, "redis get snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return data, true, nil
}

// Save implements cache.Store.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "redis set snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Delete removes the snapshot stored under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "redis delete snapshot").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
