package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window counter over Redis keys.
type Window struct {
	redis redis.UniversalClient
}

func NewWindow(rdb redis.UniversalClient) *Window {
	return &Window{redis: rdb}
}

// Hit increments key and reports ErrRateLimited once the count exceeds max.
// The window opens on the first hit and lasts ttl.
func (w *Window) Hit(ctx context.Context, key string, max int, ttl time.Duration) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := w.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(max) {
		return count, ErrRateLimited
	}
	return count, nil
}

// Exceeded reports ErrRateLimited when key already holds more than max hits,
// without counting this call.
func (w *Window) Exceeded(ctx context.Context, key string, max int) error {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(max) {
		return ErrRateLimited
	}
	return nil
}

// Count returns the hits recorded in the open window of key.
func (w *Window) Count(ctx context.Context, key string) (int, error) {
	count, err := w.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset drops the given windows.
func (w *Window) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
