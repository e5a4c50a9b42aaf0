package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/ebay-connector/pkg/database"
	"github.com/redis/go-redis/v9"
)

const decryptFailuresKey = "alerts:decrypt_failed"

// DecryptMonitor counts distinct accounts failing decryption inside a sliding window.
// Many accounts failing together points at a key mismatch between processes, not a bad row.
type DecryptMonitor struct {
	redis  *database.Redis
	window time.Duration
}

// NewDecryptMonitor creates a new decrypt failure monitor
func NewDecryptMonitor(redis *database.Redis, window time.Duration) *DecryptMonitor {
	return &DecryptMonitor{redis: redis, window: window}
}

// Record stores the failure and returns the number of distinct accounts that failed within the window
func (m *DecryptMonitor) Record(ctx context.Context, accountID string) (int, error) {
	now := time.Now()
	windowStart := now.Add(-m.window)

	pipe := m.redis.Client.TxPipeline()
	pipe.ZAdd(ctx, decryptFailuresKey, redis.Z{Score: float64(now.UnixMilli()), Member: accountID})
	pipe.ZRemRangeByScore(ctx, decryptFailuresKey, "-inf", "("+strconv.FormatInt(windowStart.UnixMilli(), 10))
	card := pipe.ZCard(ctx, decryptFailuresKey)
	pipe.Expire(ctx, decryptFailuresKey, m.window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record decrypt failure: %w", err)
	}

	return int(card.Val()), nil
}
