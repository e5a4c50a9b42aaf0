package utils

import (
	"strings"

	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
)

// ValidateAccountID reports whether id is a canonical account UUID
func ValidateAccountID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}

// ValidatePassword validates an operator password
// Minimum 12 characters, at least one uppercase letter, one lowercase letter, one number
func ValidatePassword(password string) bool {
	if len(password) < 12 || len(password) > maxPasswordBytes {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// NormalizeTrigger returns the caller tag to record, defaulting to fallback for empty or unknown tags
func NormalizeTrigger(tag, fallback string) string {
	tag = strings.TrimSpace(tag)
	if domain.ValidTrigger(tag) {
		return tag
	}
	return fallback
}
