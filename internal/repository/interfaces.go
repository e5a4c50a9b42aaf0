package repository

import (
	"context"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

// AccountRepository defines methods for account operations
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	ListActiveWithCredential(ctx context.Context) ([]*domain.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// CredentialRepository defines methods for the encrypted OAuth credential store.
// Values passed in and returned are always the stored representation; the repository never decrypts.
type CredentialRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*domain.Credential, error)

	// Upsert replaces the credential of an account, e.g. after a new consent
	Upsert(ctx context.Context, credential *domain.Credential) error

	// UpdateTokens writes a refresh result only if the stored refresh token still equals
	// expectedRefreshToken, otherwise it returns ErrWriteConflict
	UpdateTokens(ctx context.Context, accountID string, expectedRefreshToken secret.Ciphertext, update domain.TokenUpdate) error

	// RecordRefreshFailure stores the error and increments the failure counter without touching the tokens
	RecordRefreshFailure(ctx context.Context, accountID, reason string) (int, error)

	List(ctx context.Context) ([]*domain.Credential, error)
}
