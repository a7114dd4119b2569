// internal/guard/redis.go
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeenSet shares claims between bot instances watching the same stream.
type RedisSeenSet struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSeenSet wraps an existing client. Keys are stored as prefix+key with ttl expiry.
func NewRedisSeenSet(client *redis.Client, prefix string, ttl time.Duration) *RedisSeenSet {
	return &RedisSeenSet{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSeenSet) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", s.prefix+key, err)
	}
	return ok, nil
}

func (s *RedisSeenSet) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %s: %w", s.prefix+key, err)
	}
	return n > 0, nil
}

// Ping checks connectivity at startup.
func (s *RedisSeenSet) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSeenSet) Close() error {
	return s.client.Close()
}

var _ SeenSet = (*RedisSeenSet)(nil)
