package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrWriteConflict is returned when a guarded update matched no row because another writer got there first
	ErrWriteConflict = errors.New("credential was modified concurrently")

	// ErrDuplicateAccount is returned when trying to create an account with an existing id
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrInvalidCredential is returned when a credential violates a row-level invariant
	ErrInvalidCredential = errors.New("invalid credential")
)
