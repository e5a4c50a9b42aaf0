package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
	"github.com/redis/go-redis/v9"
)

const connectStateTTL = 10 * time.Minute

// ConnectState is what the consent redirect needs to remember until the callback
type ConnectState struct {
	AccountID   string             `json:"account_id"`
	Environment domain.Environment `json:"environment"`
	CreatedAt   time.Time          `json:"created_at"`
}

// RedisStateStore keeps OAuth state values in Redis
type RedisStateStore struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewRedisStateStore creates a new OAuth state store
func NewRedisStateStore(redis *database.Redis) *RedisStateStore {
	return &RedisStateStore{redis: redis, ttl: connectStateTTL}
}

// Save stores the state until it is consumed or expires
func (s *RedisStateStore) Save(ctx context.Context, state string, value ConnectState) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}

	if err := s.redis.Client.Set(ctx, stateKey(state), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// Consume returns the stored state and deletes it atomically
func (s *RedisStateStore) Consume(ctx context.Context, state string) (*ConnectState, error) {
	data, err := s.redis.Client.GetDel(ctx, stateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var value ConnectState
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return &value, nil
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}
