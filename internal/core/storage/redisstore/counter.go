package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/redis/go-redis/v9"
)

// Counter implements storage.CounterStore. Atomicity of Decr is Redis' DECR;
// nothing is locked client side.
type Counter struct {
	client redis.UniversalClient
}

func NewCounter(client redis.UniversalClient) *Counter {
	return &Counter{client: client}
}

func (c *Counter) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to setex %s: %w", key, err)
	}
	return nil
}

func (c *Counter) Decr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decr %s: %w", key, err)
	}
	return n, nil
}

func (c *Counter) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}
