package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
)

const credentialColumns = `
	id, account_id, environment, access_token_encrypted, refresh_token_encrypted,
	expires_at, refresh_token_expires_at, scopes, last_refreshed_at, last_refresh_error,
	refresh_failure_count, created_at, updated_at`

// credentialRepository implements CredentialRepository interface
type credentialRepository struct {
	db *database.Postgres
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *database.Postgres) CredentialRepository {
	return &credentialRepository{db: db}
}

// GetByAccountID retrieves the credential of an account
func (r *credentialRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM ebay_credentials WHERE account_id = $1`

	credential, err := scanCredential(r.db.DB.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential for account %s not found: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return credential, nil
}

// Upsert inserts or replaces the credential of an account and resets its failure state
func (r *credentialRepository) Upsert(ctx context.Context, credential *domain.Credential) error {
	if err := credential.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if err := requireEncrypted(credential.AccessToken, credential.RefreshToken); err != nil {
		return err
	}

	query := `
		INSERT INTO ebay_credentials (
			id, account_id, environment, access_token_encrypted, refresh_token_encrypted,
			expires_at, refresh_token_expires_at, scopes, last_refreshed_at,
			last_refresh_error, refresh_failure_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, 0, $10, $10)
		ON CONFLICT (account_id) DO UPDATE SET
			environment              = EXCLUDED.environment,
			access_token_encrypted   = EXCLUDED.access_token_encrypted,
			refresh_token_encrypted  = EXCLUDED.refresh_token_encrypted,
			expires_at               = EXCLUDED.expires_at,
			refresh_token_expires_at = EXCLUDED.refresh_token_expires_at,
			scopes                   = EXCLUDED.scopes,
			last_refreshed_at        = EXCLUDED.last_refreshed_at,
			last_refresh_error       = NULL,
			refresh_failure_count    = 0,
			updated_at               = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	if credential.ID == "" {
		credential.ID = uuid.New().String()
	}
	if credential.Scopes == nil {
		credential.Scopes = []string{}
	}

	now := time.Now()
	err := r.db.DB.QueryRowContext(ctx, query,
		credential.ID,
		credential.AccountID,
		string(credential.Environment),
		nullString(string(credential.AccessToken)),
		nullString(string(credential.RefreshToken)),
		credential.ExpiresAt,
		credential.RefreshTokenExpiresAt,
		pq.Array(credential.Scopes),
		credential.LastRefreshedAt,
		now,
	).Scan(&credential.ID, &credential.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	credential.UpdatedAt = now
	credential.LastRefreshError = nil
	credential.RefreshFailureCount = 0

	return nil
}

// UpdateTokens stores a refresh result if no other writer replaced the refresh token first
func (r *credentialRepository) UpdateTokens(ctx context.Context, accountID string, expectedRefreshToken secret.Ciphertext, update domain.TokenUpdate) error {
	if update.AccessToken == "" || update.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, domain.ErrMissingExpiry)
	}
	if err := requireEncrypted(update.AccessToken, update.RefreshToken); err != nil {
		return err
	}

	query := `
		UPDATE ebay_credentials
		SET access_token_encrypted   = $3,
			refresh_token_encrypted  = COALESCE($4, refresh_token_encrypted),
			expires_at               = $5,
			refresh_token_expires_at = COALESCE($6, refresh_token_expires_at),
			last_refreshed_at        = $7,
			last_refresh_error       = NULL,
			refresh_failure_count    = 0,
			updated_at               = NOW()
		WHERE account_id = $1
		  AND refresh_token_encrypted IS NOT DISTINCT FROM $2
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		accountID,
		nullString(string(expectedRefreshToken)),
		string(update.AccessToken),
		nullString(string(update.RefreshToken)),
		update.ExpiresAt,
		update.RefreshTokenExpiresAt,
		update.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("credential for account %s: %w", accountID, ErrWriteConflict)
	}

	return nil
}

// RecordRefreshFailure stores the failure reason and returns the new consecutive failure count
func (r *credentialRepository) RecordRefreshFailure(ctx context.Context, accountID, reason string) (int, error) {
	query := `
		UPDATE ebay_credentials
		SET last_refresh_error    = $2,
			refresh_failure_count = refresh_failure_count + 1,
			updated_at            = NOW()
		WHERE account_id = $1
		RETURNING refresh_failure_count
	`

	var count int
	if err := r.db.DB.QueryRowContext(ctx, query, accountID, reason).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("credential for account %s not found: %w", accountID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to record refresh failure: %w", err)
	}

	return count, nil
}

// List returns every stored credential
func (r *credentialRepository) List(ctx context.Context) ([]*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM ebay_credentials ORDER BY created_at`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*domain.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return credentials, nil
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	credential := &domain.Credential{}
	var (
		environment                 string
		accessToken, refreshToken   sql.NullString
		expiresAt, refreshExpiresAt sql.NullTime
		lastRefreshedAt             sql.NullTime
		lastRefreshError            sql.NullString
	)

	if err := row.Scan(
		&credential.ID,
		&credential.AccountID,
		&environment,
		&accessToken,
		&refreshToken,
		&expiresAt,
		&refreshExpiresAt,
		pq.Array(&credential.Scopes),
		&lastRefreshedAt,
		&lastRefreshError,
		&credential.RefreshFailureCount,
		&credential.CreatedAt,
		&credential.UpdatedAt,
	); err != nil {
		return nil, err
	}

	credential.Environment = domain.Environment(environment)
	credential.AccessToken = secret.Ciphertext(accessToken.String)
	credential.RefreshToken = secret.Ciphertext(refreshToken.String)

	if expiresAt.Valid {
		credential.ExpiresAt = &expiresAt.Time
	}
	if refreshExpiresAt.Valid {
		credential.RefreshTokenExpiresAt = &refreshExpiresAt.Time
	}
	if lastRefreshedAt.Valid {
		credential.LastRefreshedAt = &lastRefreshedAt.Time
	}
	if lastRefreshError.Valid {
		credential.LastRefreshError = &lastRefreshError.String
	}

	return credential, nil
}

// requireEncrypted refuses to persist any token value that is not in encrypted form
func requireEncrypted(values ...secret.Ciphertext) error {
	for _, v := range values {
		if v != "" && !v.IsEncrypted() {
			return fmt.Errorf("%w: token value is not encrypted", ErrInvalidCredential)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
