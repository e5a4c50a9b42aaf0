package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
)

const tokenIssuer = "ebay-connector"

// ErrInvalidRole is returned for a well-formed token that does not carry the operator role
var ErrInvalidRole = errors.New("token does not carry the operator role")

// JWTManager issues and validates operator bearer tokens
type JWTManager struct {
	secret      []byte
	tokenExpiry time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, tokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
	}
}

// GenerateToken issues an operator token for subject
func (j *JWTManager) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := &domain.OperatorClaims{
		Role: domain.RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenExpiry)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates an operator token and returns its claims
func (j *JWTManager) ValidateToken(tokenString string) (*domain.OperatorClaims, error) {
	claims := &domain.OperatorClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Role != domain.RoleOperator {
		return nil, ErrInvalidRole
	}

	return claims, nil
}

// GetTokenExpiry returns the token expiry duration in seconds
func (j *JWTManager) GetTokenExpiry() int {
	return int(j.tokenExpiry.Seconds())
}
