package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
)

const accountColumns = `id, name, environment, is_active, created_at, updated_at`

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account in the database
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if !account.Environment.Valid() {
		return fmt.Errorf("account environment %q is invalid", account.Environment)
	}

	query := `
		INSERT INTO accounts (id, name, environment, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.Name,
		string(account.Environment),
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s already exists: %w", account.ID, ErrDuplicateAccount)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

// List returns every account ordered by creation time
func (r *accountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`
	return r.list(ctx, query)
}

// ListActiveWithCredential returns active accounts that have a stored credential
func (r *accountRepository) ListActiveWithCredential(ctx context.Context) ([]*domain.Account, error) {
	query := `
		SELECT a.id, a.name, a.environment, a.is_active, a.created_at, a.updated_at
		FROM accounts a
		JOIN ebay_credentials c ON c.account_id = a.id
		WHERE a.is_active
		ORDER BY a.created_at
	`
	return r.list(ctx, query)
}

// SetActive enables or disables an account
func (r *accountRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE accounts SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}

	return nil
}

func (r *accountRepository) list(ctx context.Context, query string) ([]*domain.Account, error) {
	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var environment string

	if err := row.Scan(
		&account.ID,
		&account.Name,
		&environment,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	account.Environment = domain.Environment(environment)
	return account, nil
}
