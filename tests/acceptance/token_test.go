package acceptance

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

func (s *Suite) TestDebugToken_RequiresOperator() {
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", time.Hour)

	resp := s.request(http.MethodPost, "/api/v1/debug/ebay/token", dto.DebugTokenRequest{AccountID: accountID}, "")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestOperatorLogin_WrongPassword() {
	resp := s.request(http.MethodPost, "/api/v1/operators/login", dto.LoginRequest{
		Username: operatorName,
		Password: "Wrong-Password-1",
	}, "")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestDebugToken_ReusesFreshToken() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", time.Hour)

	status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID})

	s.Equal(http.StatusOK, status)
	s.True(body.Success)
	s.Equal("existing", body.Source)
	s.Equal("v^1.1#seeded-access", body.AccessToken)
	s.Equal(secret.Fingerprint("v^1.1#seeded-access"), body.TokenFingerprint)
	s.Equal(0, s.EBay.Refreshes())
}

func (s *Suite) TestDebugToken_RefreshesExpiringToken() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentSandbox, "refresh", 2*time.Minute)
	before := s.storedCredential(accountID)

	status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID, TriggeredBy: "worker_orders"})

	s.Require().Equal(http.StatusOK, status)
	s.True(body.Success)
	s.Equal("refreshed", body.Source)
	s.Equal("sandbox", body.Environment)
	s.Equal("v^1.1#refreshed-1", body.AccessToken)
	s.Require().NotNil(body.ExpiresAt)
	s.WithinDuration(time.Now().Add(2*time.Hour), *body.ExpiresAt, time.Minute)

	after := s.storedCredential(accountID)
	s.True(after.AccessToken.IsEncrypted())
	s.NotContains(string(after.AccessToken), "refreshed-1")
	s.Equal(before.RefreshToken, after.RefreshToken, "refresh token without rotation is kept")
	s.NotNil(after.LastRefreshedAt)
	s.Nil(after.LastRefreshError)
}

func (s *Suite) TestDebugToken_ConcurrentCallersShareOneRefresh() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", -time.Minute)
	s.EBay.SetDelay(200 * time.Millisecond)

	const callers = 10
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID})
			if status == http.StatusOK {
				tokens[i] = body.AccessToken
			}
		}()
	}
	wg.Wait()

	s.Equal(1, s.EBay.Refreshes())
	for _, got := range tokens {
		s.Equal("v^1.1#refreshed-1", got)
	}
}

func (s *Suite) TestDebugToken_RevokedRefreshToken() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "revoked-refresh", -time.Minute)
	s.EBay.Revoke("revoked-refresh")

	for attempt := 1; attempt <= 2; attempt++ {
		status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID})

		s.Equal(http.StatusBadGateway, status)
		s.False(body.Success)
		s.Empty(body.AccessToken)
		s.Equal("refresh_failed", body.ErrorCode)
		s.Equal("invalid_grant", body.ErrorSubCode)
		s.NotEmpty(body.ErrorMessage)
		s.Equal(attempt >= 2, body.NeedsReauth)
	}

	credential := s.storedCredential(accountID)
	s.Require().NotNil(credential.LastRefreshError)
	s.Equal(2, credential.RefreshFailureCount)
	s.True(credential.AccessToken.IsEncrypted(), "failed refresh leaves the stored token untouched")
}

func (s *Suite) TestDebugToken_UnknownAccount() {
	token := s.login()

	status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: "00000000-0000-4000-8000-000000000000"})

	s.Equal(http.StatusNotFound, status)
	s.Equal("account_not_found", body.ErrorCode)
}

func (s *Suite) TestDebugToken_ForeignKeyCiphertext() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", time.Hour)

	foreign, err := secret.NewCipher("a-different-deployment-key-0123456789")
	s.Require().NoError(err)
	value, err := foreign.Encrypt("v^1.1#other")
	s.Require().NoError(err)
	_, err = s.Postgres.DB.Exec(`UPDATE ebay_credentials SET access_token_encrypted = $1 WHERE account_id = $2`, string(value), accountID)
	s.Require().NoError(err)

	status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID})

	s.Equal(http.StatusInternalServerError, status)
	s.Equal("decrypt_failed", body.ErrorCode)
	s.Empty(body.AccessToken)
	s.Equal(0, s.EBay.Refreshes())
}

func (s *Suite) TestManualRefresh_OmitsToken() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", time.Hour)

	resp := s.request(http.MethodPost, "/api/v1/accounts/"+accountID+"/token/refresh", nil, token)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(string(raw), "access_token")
	s.NotContains(string(raw), "refreshed-1")

	var body dto.TokenResponse
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal("refreshed", body.Source)
	s.Equal(1, s.EBay.Refreshes())
}

func (s *Suite) TestTokenStatus_IsMasked() {
	token := s.login()
	accountID := s.seedAccount(domain.EnvironmentProduction, "refresh", time.Hour)

	resp := s.request(http.MethodGet, "/api/v1/accounts/"+accountID+"/token-status", nil, token)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.Equal(http.StatusOK, resp.StatusCode)
	s.False(strings.Contains(string(raw), secret.Prefix))
	s.NotContains(string(raw), "seeded-access")

	var status domain.CredentialStatus
	s.Require().NoError(json.Unmarshal(raw, &status))
	s.Equal(domain.TokenStateEncrypted, status.AccessTokenState)
	s.False(status.NeedsReauth)
}
