package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
)

// ErrRateLimited is returned when a sign-in attempt exceeds the limit.
var ErrRateLimited = fmt.Errorf("%w: Too many sign-in attempts. Please try again later.", httpx.ErrTooManyRequests)

// Limiter throttles sign-in attempts per email.
type Limiter interface {
	Allow(ctx context.Context, email string) (retryAfter time.Duration, err error)
}

// RedisLimiter is a GCRA limiter shared by every instance through Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter allows perMinute attempts per email.
func NewRedisLimiter(client redis.UniversalClient, perMinute int) *RedisLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RedisLimiter{limiter: redis_rate.NewLimiter(client), limit: redis_rate.PerMinute(perMinute)}
}

// Allow consumes one attempt. It returns ErrRateLimited and the wait time once
// the budget is spent.
func (l *RedisLimiter) Allow(ctx context.Context, email string) (time.Duration, error) {
	res, err := l.limiter.Allow(ctx, limiterKey(email), l.limit)
	if err != nil {
		return 0, fmt.Errorf("auth: rate limit: %w", err)
	}
	if res.Allowed == 0 {
		return res.RetryAfter, ErrRateLimited
	}
	return 0, nil
}

func limiterKey(email string) string {
	return "signin:" + strings.ToLower(strings.TrimSpace(email))
}
