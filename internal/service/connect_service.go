package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"go.uber.org/zap"
)

// connectService implements ConnectService interface
type connectService struct {
	accounts        repository.AccountRepository
	credentials     repository.CredentialRepository
	cipher          *secret.Cipher
	exchanger       TokenExchanger
	states          StateStore
	scopes          []string
	reauthThreshold int
	logger          *zap.Logger
}

// NewConnectService creates a new connect service
func NewConnectService(
	accounts repository.AccountRepository,
	credentials repository.CredentialRepository,
	cipher *secret.Cipher,
	exchanger TokenExchanger,
	states StateStore,
	scopes []string,
	reauthThreshold int,
	logger *zap.Logger,
) ConnectService {
	return &connectService{
		accounts:        accounts,
		credentials:     credentials,
		cipher:          cipher,
		exchanger:       exchanger,
		states:          states,
		scopes:          scopes,
		reauthThreshold: reauthThreshold,
		logger:          logger,
	}
}

// AuthorizationURL starts the consent flow for an account in its own environment
func (s *connectService) AuthorizationURL(ctx context.Context, accountID string) (string, error) {
	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	state := uuid.New().String()
	authURL, err := s.exchanger.AuthorizationURL(account.Environment, state)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization url: %w", err)
	}

	value := ConnectState{
		AccountID:   account.ID,
		Environment: account.Environment,
		CreatedAt:   time.Now(),
	}
	if err := s.states.Save(ctx, state, value); err != nil {
		return "", err
	}

	return authURL, nil
}

// Complete exchanges the authorization code and stores the encrypted grant
func (s *connectService) Complete(ctx context.Context, state, code string) (*domain.CredentialStatus, error) {
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}

	pending, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	account, err := s.activeAccount(ctx, pending.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Environment != pending.Environment {
		return nil, fmt.Errorf("account environment changed during authorization: %w", ErrInvalidState)
	}

	resp, err := s.exchanger.ExchangeCode(ctx, account.Environment, code, "")
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	now := time.Now()
	accessToken, err := s.cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshToken, err := s.cipher.Encrypt(resp.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	expiresAt := now.Add(resp.ExpiresIn)
	credential := &domain.Credential{
		AccountID:       account.ID,
		Environment:     account.Environment,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		ExpiresAt:       &expiresAt,
		Scopes:          s.scopes,
		LastRefreshedAt: &now,
	}
	if resp.RefreshTokenExpiresIn > 0 {
		refreshExpiresAt := now.Add(resp.RefreshTokenExpiresIn)
		credential.RefreshTokenExpiresAt = &refreshExpiresAt
	}

	if err := s.credentials.Upsert(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	s.logger.Info("eBay account connected",
		zap.String("account_id", account.ID),
		zap.String("environment", string(account.Environment)),
		zap.String("token_fingerprint", secret.Fingerprint(resp.AccessToken)),
	)

	return credential.Status(s.reauthThreshold), nil
}

func (s *connectService) activeAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return account, nil
}
