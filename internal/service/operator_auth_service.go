package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
)

// OperatorToken is the result of a successful operator login
type OperatorToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// operatorAuthService implements OperatorAuthService interface
type operatorAuthService struct {
	username     string
	passwordHash string
	jwtManager   *utils.JWTManager
}

// NewOperatorAuthService creates a new operator auth service
func NewOperatorAuthService(username, passwordHash string, jwtManager *utils.JWTManager) OperatorAuthService {
	return &operatorAuthService{
		username:     username,
		passwordHash: passwordHash,
		jwtManager:   jwtManager,
	}
}

// Login checks the operator credentials and issues a bearer token
func (s *operatorAuthService) Login(ctx context.Context, username, password string) (*OperatorToken, error) {
	if s.passwordHash == "" {
		return nil, ErrOperatorLoginDisabled
	}

	userMatches := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordMatches := utils.CheckPasswordHash(password, s.passwordHash)
	if !userMatches || !passwordMatches {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateToken(username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate operator token: %w", err)
	}

	return &OperatorToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwtManager.GetTokenExpiry(),
	}, nil
}

// ValidateToken validates an operator bearer token
func (s *operatorAuthService) ValidateToken(ctx context.Context, token string) (*domain.OperatorClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
