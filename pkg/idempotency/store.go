// Package idempotency provides a best-effort duplicate detector for
// fulfillment requests carrying a client idempotency token. The committed
// event's unique key remains the authoritative check; this store only spares
// the database a write transaction on an obvious network retry.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fulfillment:idem:"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen marks the key and reports whether it was already marked.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget clears a mark after a failed attempt so a corrected retry with the
// same token is not short-circuited.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}
