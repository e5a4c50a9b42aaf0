package ebay

import (
	"errors"
	"fmt"
)

var (
	// ErrExchangeFailed matches every failed authorization code exchange
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrRefreshFailed matches every failed refresh_token grant
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrEnvironmentMismatch is a configuration error detected before any HTTP call
	ErrEnvironmentMismatch = errors.New("environment_mismatch")
)

// Op names the grant that failed
type Op string

const (
	OpExchange Op = "exchange"
	OpRefresh  Op = "refresh"
)

// ErrorKind classifies an upstream failure for retry decisions
type ErrorKind string

const (
	// KindInvalidGrant means the code or refresh token is expired or revoked; not retryable
	KindInvalidGrant ErrorKind = "invalid_grant"
	KindTimeout      ErrorKind = "timeout"
	KindNetwork      ErrorKind = "network_error"
	KindUpstream     ErrorKind = "upstream_error"
)

// Error is returned by the client for every failed grant call
type Error struct {
	Op          Op
	Kind        ErrorKind
	StatusCode  int
	OAuthError  string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ebay %s failed: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("ebay %s failed: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the per-operation sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrExchangeFailed:
		return e.Op == OpExchange
	case ErrRefreshFailed:
		return e.Op == OpRefresh
	}
	return false
}

// Retryable reports whether the failure is transient
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetwork
}
