package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow records a request against key using a sliding window log.
// It returns a *RateLimitError once limit requests were seen inside window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err()
	if err != nil {
		return fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	if count >= int64(limit) {
		retryAfter := window
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.UnixMilli(int64(oldest[0].Score))
			retryAfter = window - now.Sub(oldestTime)
		}
		return &RateLimitError{RetryAfter: retryAfter.Round(time.Second)}
	}

	err = r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.New().String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}

	// Expiry is housekeeping only; a failure here does not affect the decision.
	_ = r.redis.Client.Expire(ctx, redisKey, window+time.Minute).Err()

	return nil
}
