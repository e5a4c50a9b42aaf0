package domain

import (
	"errors"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

// ErrMissingExpiry is returned when a credential carries an access token without an expiry
var ErrMissingExpiry = errors.New("access token stored without expires_at")

// Credential is the persisted, encrypted OAuth grant for one account
type Credential struct {
	ID                    string            `db:"id"`
	AccountID             string            `db:"account_id"`
	Environment           Environment       `db:"environment"`
	AccessToken           secret.Ciphertext `db:"access_token_encrypted"`
	RefreshToken          secret.Ciphertext `db:"refresh_token_encrypted"`
	ExpiresAt             *time.Time        `db:"expires_at"`
	RefreshTokenExpiresAt *time.Time        `db:"refresh_token_expires_at"`
	Scopes                []string          `db:"scopes"`
	LastRefreshedAt       *time.Time        `db:"last_refreshed_at"`
	LastRefreshError      *string           `db:"last_refresh_error"`
	RefreshFailureCount   int               `db:"refresh_failure_count"`
	CreatedAt             time.Time         `db:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at"`
}

// Validate checks the row-level invariants
func (c *Credential) Validate() error {
	if c.AccessToken != "" && c.ExpiresAt == nil {
		return ErrMissingExpiry
	}
	if !c.Environment.Valid() {
		return errors.New("credential environment is not set")
	}
	return nil
}

// RefreshedSince reports whether a refresh completed at or after t
func (c *Credential) RefreshedSince(t time.Time) bool {
	return c.LastRefreshedAt != nil && !c.LastRefreshedAt.Before(t)
}

// TokenUpdate is the write-back of a successful refresh
type TokenUpdate struct {
	AccessToken           secret.Ciphertext
	RefreshToken          secret.Ciphertext
	ExpiresAt             time.Time
	RefreshTokenExpiresAt *time.Time
	RefreshedAt           time.Time
}

// TokenState classifies a stored value without exposing it
type TokenState string

const (
	TokenStateAbsent    TokenState = "absent"
	TokenStateEncrypted TokenState = "encrypted"
	TokenStatePlaintext TokenState = "plaintext"
)

// StateOf classifies a stored token value
func StateOf(value secret.Ciphertext) TokenState {
	switch {
	case value == "":
		return TokenStateAbsent
	case value.IsEncrypted():
		return TokenStateEncrypted
	default:
		return TokenStatePlaintext
	}
}

// CredentialStatus is a masked snapshot safe for display
type CredentialStatus struct {
	AccountID             string      `json:"account_id"`
	Environment           Environment `json:"environment"`
	AccessTokenState      TokenState  `json:"access_token_state"`
	RefreshTokenState     TokenState  `json:"refresh_token_state"`
	ExpiresAt             *time.Time  `json:"expires_at,omitempty"`
	RefreshTokenExpiresAt *time.Time  `json:"refresh_token_expires_at,omitempty"`
	LastRefreshedAt       *time.Time  `json:"last_refreshed_at,omitempty"`
	LastRefreshError      *string     `json:"last_refresh_error,omitempty"`
	RefreshFailureCount   int         `json:"refresh_failure_count"`
	NeedsReauth           bool        `json:"needs_reauth"`
}

// Status builds the masked snapshot of c
func (c *Credential) Status(reauthThreshold int) *CredentialStatus {
	return &CredentialStatus{
		AccountID:             c.AccountID,
		Environment:           c.Environment,
		AccessTokenState:      StateOf(c.AccessToken),
		RefreshTokenState:     StateOf(c.RefreshToken),
		ExpiresAt:             c.ExpiresAt,
		RefreshTokenExpiresAt: c.RefreshTokenExpiresAt,
		LastRefreshedAt:       c.LastRefreshedAt,
		LastRefreshError:      c.LastRefreshError,
		RefreshFailureCount:   c.RefreshFailureCount,
		NeedsReauth:           NeedsReauth(c.RefreshFailureCount, reauthThreshold),
	}
}

// NeedsReauth reports whether consecutive refresh failures reached the threshold
func NeedsReauth(failures, threshold int) bool {
	return threshold > 0 && failures >= threshold
}
