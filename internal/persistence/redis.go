package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on Redis string keys.
type RedisStorage struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStorage creates a Redis-backed storage. Keys are namespaced with
// prefix; an empty prefix becomes "datastore:".
func NewRedisStorage(client redis.Cmdable, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "datastore:"
	}
	return &RedisStorage{client: client, prefix: prefix}
}

// NewRedisStorageFromURL creates a storage from a connection URL such as
// "redis://localhost:6379/0".
func NewRedisStorageFromURL(url, prefix string) (*RedisStorage, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisStorage(client, prefix), client, nil
}

func (s *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return v, true, nil
}

func (s *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
