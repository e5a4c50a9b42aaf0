package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
)

// statusService implements StatusService interface.
// Snapshots are read per request and never cached.
type statusService struct {
	credentials     repository.CredentialRepository
	reauthThreshold int
}

// NewStatusService creates a new status service
func NewStatusService(credentials repository.CredentialRepository, reauthThreshold int) StatusService {
	return &statusService{credentials: credentials, reauthThreshold: reauthThreshold}
}

// Status returns the masked credential snapshot of an account
func (s *statusService) Status(ctx context.Context, accountID string) (*domain.CredentialStatus, error) {
	credential, err := s.credentials.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return credential.Status(s.reauthThreshold), nil
}

// List returns masked snapshots of every stored credential
func (s *statusService) List(ctx context.Context) ([]*domain.CredentialStatus, error) {
	credentials, err := s.credentials.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	statuses := make([]*domain.CredentialStatus, 0, len(credentials))
	for _, credential := range credentials {
		statuses = append(statuses, credential.Status(s.reauthThreshold))
	}

	return statuses, nil
}
