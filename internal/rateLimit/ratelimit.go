package rateLimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter kept in Redis.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit for key in the current window. It returns an error
// when Redis could not be reached; callers decide whether to fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	fullKey := "rl:" + key

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(rate), nil
}
