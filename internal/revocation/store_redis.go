package revocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "revocation:"

// RedisIndex is the online revocation index backed by Redis. Revoked
// certificate hashes are stored as keys under a shared prefix; membership is
// a single EXISTS-style lookup.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex constructs a RedisIndex on an existing client.
func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

// Contains reports whether hash is present in the index.
func (s *RedisIndex) Contains(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.Get(ctx, redisKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

// Add inserts a revoked hash. Entries do not expire; revocation is permanent
// and removal happens only through a full index rebuild.
func (s *RedisIndex) Add(ctx context.Context, hash string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+hash, "1", 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
