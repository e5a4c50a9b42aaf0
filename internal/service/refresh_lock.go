package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 100 * time.Millisecond

// releaseScript deletes the lock only if it is still owned by the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RefreshLock is a per-account lock in Redis shared by every process that refreshes tokens
type RefreshLock struct {
	redis *database.Redis
	ttl   time.Duration
	wait  time.Duration
}

// NewRefreshLock creates a new refresh lock. ttl must outlive one upstream refresh call.
func NewRefreshLock(redis *database.Redis, ttl, wait time.Duration) *RefreshLock {
	return &RefreshLock{redis: redis, ttl: ttl, wait: wait}
}

// Acquire polls until the lock is taken or the wait budget is spent
func (l *RefreshLock) Acquire(ctx context.Context, accountID string) (func(context.Context) error, error) {
	key := fmt.Sprintf("lock:ebay_token:%s", accountID)
	owner := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.redis.Client.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.redis.Client, []string{key}, owner).Err(); err != nil {
					return fmt.Errorf("failed to release lock: %w", err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockNotAcquired
		case <-ticker.C:
		}
	}
}
