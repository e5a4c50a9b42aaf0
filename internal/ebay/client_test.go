package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := Config{
		Endpoints: map[domain.Environment]Endpoint{
			domain.EnvironmentSandbox: {
				TokenURL:     server.URL + "/identity/v1/oauth2/token",
				AuthURL:      "https://auth.sandbox.ebay.com/oauth2/authorize",
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				RuName:       "Test-RuName",
			},
		},
		Scopes:  []string{"https://api.ebay.com/oauth/api_scope", "https://api.ebay.com/oauth/api_scope/sell.inventory"},
		Timeout: 200 * time.Millisecond,
	}

	return NewClient(cfg, zap.NewNop()), &calls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestRefreshSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-value", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "https://api.ebay.com/oauth/api_scope https://api.ebay.com/oauth/api_scope/sell.inventory", r.PostForm.Get("scope"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "new-access",
			"expires_in":   7200,
			"token_type":   "User Access Token",
		})
	})

	resp, err := client.Refresh(context.Background(), domain.EnvironmentSandbox, "refresh-value")
	require.NoError(t, err)

	assert.Equal(t, secret.Plaintext("new-access"), resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)
	assert.Equal(t, 2*time.Hour, resp.ExpiresIn)
	assert.Equal(t, "User Access Token", resp.TokenType)
}

func TestExchangeCodeSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "Test-RuName", r.PostForm.Get("redirect_uri"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":             "access",
			"refresh_token":            "refresh",
			"expires_in":               7200,
			"refresh_token_expires_in": 47304000,
		})
	})

	resp, err := client.ExchangeCode(context.Background(), domain.EnvironmentSandbox, "auth-code", "")
	require.NoError(t, err)

	assert.Equal(t, secret.Plaintext("refresh"), resp.RefreshToken)
	assert.Equal(t, 47304000*time.Second, resp.RefreshTokenExpiresIn)
}

func TestRefreshInvalidGrant(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "the provided authorization refresh token is invalid or was issued to another client",
		})
	})

	_, err := client.Refresh(context.Background(), domain.EnvironmentSandbox, "revoked")
	require.Error(t, err)

	var ebayErr *Error
	require.ErrorAs(t, err, &ebayErr)
	assert.Equal(t, KindInvalidGrant, ebayErr.Kind)
	assert.Equal(t, http.StatusBadRequest, ebayErr.StatusCode)
	assert.False(t, ebayErr.Retryable())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.NotErrorIs(t, err, ErrExchangeFailed)
}

func TestRefreshUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := client.Refresh(context.Background(), domain.EnvironmentSandbox, "refresh")

	var ebayErr *Error
	require.ErrorAs(t, err, &ebayErr)
	assert.Equal(t, KindUpstream, ebayErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, ebayErr.StatusCode)
	assert.Empty(t, ebayErr.OAuthError)
}

func TestRefreshMissingFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token_type": "User Access Token"})
	})

	_, err := client.Refresh(context.Background(), domain.EnvironmentSandbox, "refresh")

	var ebayErr *Error
	require.ErrorAs(t, err, &ebayErr)
	assert.Equal(t, KindUpstream, ebayErr.Kind)
}

func TestRefreshTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := client.Refresh(context.Background(), domain.EnvironmentSandbox, "refresh")

	var ebayErr *Error
	require.ErrorAs(t, err, &ebayErr)
	assert.Equal(t, KindTimeout, ebayErr.Kind)
	assert.True(t, ebayErr.Retryable())
}

func TestUnconfiguredEnvironmentFailsBeforeHTTP(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Refresh(context.Background(), domain.EnvironmentProduction, "refresh")
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)

	_, err = client.Refresh(context.Background(), domain.Environment("staging"), "refresh")
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestCrossEnvironmentEndpointIsRejected(t *testing.T) {
	client := NewClient(Config{
		Endpoints: map[domain.Environment]Endpoint{
			domain.EnvironmentProduction: {TokenURL: SandboxTokenURL, ClientID: "id", ClientSecret: "secret"},
			domain.EnvironmentSandbox:    {TokenURL: ProductionTokenURL, ClientID: "id", ClientSecret: "secret"},
		},
	}, nil)

	_, err := client.Refresh(context.Background(), domain.EnvironmentProduction, "refresh")
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)

	_, err = client.Refresh(context.Background(), domain.EnvironmentSandbox, "refresh")
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)
}

func TestAuthorizationURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	raw, err := client.AuthorizationURL(domain.EnvironmentSandbox, "state-123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "auth.sandbox.ebay.com", u.Host)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "Test-RuName", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "sell.inventory")
}
