package domain

import (
	"fmt"
	"time"
)

// Environment is the eBay marketplace environment an account is bound to
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// ParseEnvironment validates a stored or user-supplied environment value
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if !env.Valid() {
		return "", fmt.Errorf("unknown environment %q", s)
	}
	return env, nil
}

// Valid reports whether e is a known environment
func (e Environment) Valid() bool {
	return e == EnvironmentProduction || e == EnvironmentSandbox
}

// Account represents one connected eBay seller account
type Account struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Environment Environment `json:"environment" db:"environment"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
