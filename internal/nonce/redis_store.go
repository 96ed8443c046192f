package nonce

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
// Each nonce is stored under key "<prefix><namespace>:<value>" with TTL =
// Window, so expiry needs no sweeper. SET NX makes check-and-record a single
// atomic operation on the Redis side.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-based nonce store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "nonce:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(ns Namespace, value string) string {
	return s.prefix + string(ns) + ":" + value
}

func (s *RedisStore) CheckAndConsume(ctx context.Context, ns Namespace, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return s.client.SetNX(ctx, s.key(ns, value), "1", Window).Result()
}
