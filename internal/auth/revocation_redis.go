package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRevocationPrefix namespaces blacklist keys in Redis.
const DefaultRevocationPrefix = "jwt:blacklist:"

// RedisRevocationStore shares revocations between instances through Redis.
// Entries carry a Redis TTL so the keyspace prunes itself.
type RedisRevocationStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRevocationStore wraps a Redis client. An empty prefix uses DefaultRevocationPrefix.
func NewRedisRevocationStore(client redis.Cmdable, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocationStore{client: client, prefix: prefix}
}

// Revoke sets the blacklist key with the given expiry.
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errEmptyTokenID
	}
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(jti), "true", ttl).Err()
}

// IsRevoked checks for the blacklist key.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) key(jti string) string {
	return s.prefix + jti
}
