package service

import (
	"errors"
	"time"
)

var (
	// ErrLockNotAcquired is returned when the per-account lock is held elsewhere for longer than the wait budget
	ErrLockNotAcquired = errors.New("account lock not acquired")

	// ErrInvalidState is returned when an OAuth callback carries an unknown, expired or reused state
	ErrInvalidState = errors.New("invalid or expired oauth state")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is inactive")

	// ErrInvalidCredentials is returned for a failed operator login
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrOperatorLoginDisabled is returned when no operator password hash is configured
	ErrOperatorLoginDisabled = errors.New("operator login is not configured")
)

// RateLimitError is returned when a caller exceeded its request budget
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}
