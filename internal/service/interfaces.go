package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

// TokenProvider is the single entry point every caller uses to obtain an eBay access token
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context, req domain.TokenRequest) domain.TokenResult
}

// TokenExchanger performs the OAuth grants against eBay
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, env domain.Environment, code, redirectURI string) (*ebay.TokenResponse, error)
	Refresh(ctx context.Context, env domain.Environment, refreshToken secret.Plaintext) (*ebay.TokenResponse, error)
	AuthorizationURL(env domain.Environment, state string) (string, error)
}

// AccountLocker provides cross-process mutual exclusion per account.
// Acquire blocks until the lock is held or returns ErrLockNotAcquired.
type AccountLocker interface {
	Acquire(ctx context.Context, accountID string) (release func(context.Context) error, err error)
}

// DecryptFailureRecorder tracks decrypt failures across accounts
type DecryptFailureRecorder interface {
	// Record notes a failure for accountID and returns the number of distinct accounts failing in the window
	Record(ctx context.Context, accountID string) (int, error)
}

// TokenMetrics records token provider instruments
type TokenMetrics interface {
	RecordCall(ctx context.Context, triggeredBy string, source domain.TokenSource, code domain.ErrorCode)
	RecordRefresh(ctx context.Context, duration time.Duration, success bool)
}

// StateStore keeps OAuth connect state between the consent redirect and the callback
type StateStore interface {
	Save(ctx context.Context, state string, value ConnectState) error
	// Consume returns the state once and deletes it
	Consume(ctx context.Context, state string) (*ConnectState, error)
}

// ConnectService runs the OAuth consent flow for an account
type ConnectService interface {
	AuthorizationURL(ctx context.Context, accountID string) (string, error)
	Complete(ctx context.Context, state, code string) (*domain.CredentialStatus, error)
}

// StatusService exposes masked credential snapshots
type StatusService interface {
	Status(ctx context.Context, accountID string) (*domain.CredentialStatus, error)
	List(ctx context.Context) ([]*domain.CredentialStatus, error)
}

// OperatorAuthService authenticates operators for the diagnostic surface
type OperatorAuthService interface {
	Login(ctx context.Context, username, password string) (*OperatorToken, error)
	ValidateToken(ctx context.Context, token string) (*domain.OperatorClaims, error)
}

// Limiter decides whether a request under key fits the budget; it returns *RateLimitError when it does not
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) error
}
