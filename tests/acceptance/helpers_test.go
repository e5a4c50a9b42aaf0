package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

// seedAccount stores an active account with a credential whose access token expires after expiresIn
func (s *Suite) seedAccount(env domain.Environment, refreshToken string, expiresIn time.Duration) string {
	ctx := context.Background()
	services := s.App.Services()

	account := &domain.Account{Name: "acceptance store", Environment: env, IsActive: true}
	s.Require().NoError(services.Repositories.Account.Create(ctx, account))

	access, err := services.Cipher.Encrypt("v^1.1#seeded-access")
	s.Require().NoError(err)
	refresh, err := services.Cipher.Encrypt(secret.Plaintext(refreshToken))
	s.Require().NoError(err)

	expiresAt := time.Now().Add(expiresIn)
	s.Require().NoError(services.Repositories.Credential.Upsert(ctx, &domain.Credential{
		AccountID:    account.ID,
		Environment:  env,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    &expiresAt,
	}))

	return account.ID
}

func (s *Suite) storedCredential(accountID string) *domain.Credential {
	credential, err := s.App.Services().Repositories.Credential.GetByAccountID(context.Background(), accountID)
	s.Require().NoError(err)
	return credential
}

func (s *Suite) login() string {
	resp := s.request(http.MethodPost, "/api/v1/operators/login", dto.LoginRequest{
		Username: operatorName,
		Password: operatorPassword,
	}, "")
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var login dto.LoginResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&login))
	return login.AccessToken
}

func (s *Suite) request(method, path string, body any, bearer string) *http.Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) debugToken(bearer string, req dto.DebugTokenRequest) (int, dto.TokenResponse) {
	resp := s.request(http.MethodPost, "/api/v1/debug/ebay/token", req, bearer)
	defer resp.Body.Close()

	var body dto.TokenResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}
