package acceptance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
)

func (s *Suite) TestConnectFlow() {
	token := s.login()

	account := &domain.Account{Name: "new store", Environment: domain.EnvironmentSandbox, IsActive: true}
	s.Require().NoError(s.App.Services().Repositories.Account.Create(context.Background(), account))

	resp := s.request(http.MethodGet, "/api/v1/accounts/"+account.ID+"/connect", nil, token)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var connect dto.ConnectResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&connect))

	consent, err := url.Parse(connect.AuthorizationURL)
	s.Require().NoError(err)
	state := consent.Query().Get("state")
	s.NotEmpty(state)
	s.Equal("sandbox-client-id", consent.Query().Get("client_id"))

	callback := s.request(http.MethodGet, "/api/v1/ebay/callback?code=auth-code&state="+url.QueryEscape(state), nil, "")
	defer callback.Body.Close()
	s.Require().Equal(http.StatusOK, callback.StatusCode)

	credential := s.storedCredential(account.ID)
	s.True(credential.AccessToken.IsEncrypted())
	s.True(credential.RefreshToken.IsEncrypted())
	s.Equal(domain.EnvironmentSandbox, credential.Environment)
	s.NotNil(credential.RefreshTokenExpiresAt)

	replay := s.request(http.MethodGet, "/api/v1/ebay/callback?code=auth-code&state="+url.QueryEscape(state), nil, "")
	defer replay.Body.Close()
	s.Equal(http.StatusBadRequest, replay.StatusCode, "state is single use")

	status, body := s.debugToken(token, dto.DebugTokenRequest{AccountID: account.ID})
	s.Equal(http.StatusOK, status)
	s.Equal("v^1.1#connected-1", body.AccessToken)
}

func (s *Suite) TestCallback_Denied() {
	resp := s.request(http.MethodGet, "/api/v1/ebay/callback?error=access_denied", nil, "")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
