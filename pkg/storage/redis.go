package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisKV struct {
	client *redis.Client
	prefix string
}

var _ KV = (*RedisKV)(nil)

// NewRedis returns a KV over client. prefix namespaces every key.
func NewRedis(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// NewRedisFromURL parses a redis:// URL and checks the connection.
func NewRedisFromURL(ctx context.Context, url, prefix string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, prefix), nil
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: error getting %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: error setting %q: %w", key, err)
	}
	return nil
}

func (s *RedisKV) SetMany(ctx context.Context, ttl time.Duration, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ttl = max(ttl, 0)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, s.prefix+e.Key, e.Value, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: error setting %d entries: %w", len(entries), err)
	}
	return nil
}

func (s *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis: error deleting %v: %w", keys, err)
	}
	return nil
}

func (s *RedisKV) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisKV) Close() error { return s.client.Close() }
