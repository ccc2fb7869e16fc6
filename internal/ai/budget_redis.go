package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisBudgetPrefix = "worksheet:budget:"

// RedisBudget tracks token usage in Redis/Dragonfly so every server node
// shares the same counters. Usage resets when the window expires.
type RedisBudget struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewRedisBudget creates a Redis-backed tracker. A non-positive limit means unlimited.
func NewRedisBudget(client redis.Cmdable, limit int64, window time.Duration) *RedisBudget {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &RedisBudget{client: client, limit: limit, window: window}
}

func (b *RedisBudget) key(key string) string {
	return redisBudgetPrefix + key
}

func (b *RedisBudget) used(ctx context.Context, key string) (int64, error) {
	used, err := b.client.Get(ctx, b.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading budget usage: %w", err)
	}
	return used, nil
}

func (b *RedisBudget) Check(ctx context.Context, key string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, err := b.used(ctx, key)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, key string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, b.key(key), int64(tokens))
	pipe.ExpireNX(ctx, b.key(key), b.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording budget usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, key string) (int64, int64, error) {
	used, err := b.used(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return used, b.limit, nil
}
