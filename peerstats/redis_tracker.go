package peerstats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the counter keys.
const DefaultRedisPrefix = "vulnserver:peers:"

// RedisTracker keeps counts in Redis so several server processes driven by
// one harness share them. Each peer is an INCR counter whose TTL is set when
// it is created.
type RedisTracker struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisTracker creates a Redis backed Tracker.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	tracker := NewRedisTracker(client, DefaultRedisPrefix, time.Hour)
func NewRedisTracker(client *redis.Client, prefix string, window time.Duration) *RedisTracker {
	return &RedisTracker{
		client: client,
		prefix: prefix,
		window: window,
	}
}

func (t *RedisTracker) key(peer string) string {
	return t.prefix + peer
}

// Record implements Tracker.
func (t *RedisTracker) Record(ctx context.Context, peer string) (int64, error) {
	key := t.key(peer)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr error: %w", err)
	}

	if n == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return n, fmt.Errorf("redis expire error: %w", err)
		}
	}

	return n, nil
}

// Count implements Tracker.
func (t *RedisTracker) Count(ctx context.Context, peer string) (int64, error) {
	n, err := t.client.Get(ctx, t.key(peer)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("redis get error: %w", err)
	}

	return n, nil
}

// Reset implements Tracker. Only keys under the tracker's prefix are removed.
func (t *RedisTracker) Reset(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, t.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := t.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	return nil
}
