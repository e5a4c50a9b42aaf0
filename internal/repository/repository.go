package repository

import (
	"errors"

	"github.com/lib/pq"
	"github.com/prperemyshlev/ebay-connector/pkg/database"
)

const uniqueViolation = "23505"

// Repositories holds all repository interfaces
type Repositories struct {
	Account    AccountRepository
	Credential CredentialRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Account:    NewAccountRepository(db),
		Credential: NewCredentialRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
