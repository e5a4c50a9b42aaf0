package domain

import (
	"strings"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

// TokenSource tells the caller whether the token was reused or freshly refreshed
type TokenSource string

const (
	SourceExisting  TokenSource = "existing"
	SourceRefreshed TokenSource = "refreshed"
	SourceNone      TokenSource = "none"
)

// ErrorCode is the failure taxonomy returned to every token caller
type ErrorCode string

const (
	ErrCodeAccountNotFound     ErrorCode = "account_not_found"
	ErrCodeAccountInactive     ErrorCode = "account_inactive"
	ErrCodeNoCredential        ErrorCode = "no_credential"
	ErrCodeDecryptFailed       ErrorCode = "decrypt_failed"
	ErrCodeEnvironmentMismatch ErrorCode = "environment_mismatch"
	ErrCodeRefreshFailed       ErrorCode = "refresh_failed"
	ErrCodeWriteConflict       ErrorCode = "write_conflict"
	ErrCodeStorageError        ErrorCode = "storage_error"
)

// Retryable reports whether a caller may retry the same request later
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeWriteConflict, ErrCodeStorageError:
		return true
	default:
		return false
	}
}

// Caller tags
const (
	TriggeredByManual    = "manual"
	TriggeredByScheduler = "scheduler"
	TriggeredByDebug     = "debug"
	TriggeredByWorker    = "worker_"
)

// WorkerTrigger builds the triggered_by tag for a named worker
func WorkerTrigger(name string) string {
	return TriggeredByWorker + name
}

// ValidTrigger reports whether tag is one of the known caller tags
func ValidTrigger(tag string) bool {
	switch tag {
	case TriggeredByManual, TriggeredByScheduler, TriggeredByDebug:
		return true
	}
	return strings.HasPrefix(tag, TriggeredByWorker) && len(tag) > len(TriggeredByWorker)
}

// TokenRequest is the input of the token provider
type TokenRequest struct {
	AccountID    string
	APIFamily    string
	ForceRefresh bool
	TriggeredBy  string
}

// TokenResult is built fresh on every call and never persisted.
// AccessToken is set only when Success is true.
type TokenResult struct {
	Success          bool
	AccessToken      secret.Plaintext
	Environment      Environment
	Source           TokenSource
	ExpiresAt        *time.Time
	TokenFingerprint string
	ErrorCode        ErrorCode
	ErrorSubCode     string
	ErrorMessage     string
	NeedsReauth      bool
}

// TokenFailure builds a failed result
func TokenFailure(env Environment, code ErrorCode, message string) TokenResult {
	return TokenResult{
		Success:      false,
		Environment:  env,
		Source:       SourceNone,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
