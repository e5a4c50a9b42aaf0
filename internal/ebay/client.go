// Package ebay wraps the eBay Identity OAuth token endpoint.
//
// The client is stateless: it performs the authorization_code and refresh_token grants
// against the endpoint of the environment it is given and classifies failures.
package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/config"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"go.uber.org/zap"
)

const (
	ProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	ProductionAuthURL  = "https://auth.ebay.com/oauth2/authorize"
	SandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	SandboxAuthURL     = "https://auth.sandbox.ebay.com/oauth2/authorize"

	defaultTimeout  = 15 * time.Second
	maxResponseBody = 64 << 10
)

// Endpoint is the OAuth application registered for one environment
type Endpoint struct {
	TokenURL     string
	AuthURL      string
	ClientID     string
	ClientSecret string
	RuName       string
}

// Config holds the per-environment endpoints and shared grant settings
type Config struct {
	Endpoints map[domain.Environment]Endpoint
	Scopes    []string
	Timeout   time.Duration
}

// NewConfig builds the client configuration, filling in eBay's public URLs where unset
func NewConfig(c config.EBayConfig) Config {
	production := endpointFrom(c.Production, ProductionTokenURL, ProductionAuthURL)
	sandbox := endpointFrom(c.Sandbox, SandboxTokenURL, SandboxAuthURL)

	return Config{
		Endpoints: map[domain.Environment]Endpoint{
			domain.EnvironmentProduction: production,
			domain.EnvironmentSandbox:    sandbox,
		},
		Scopes:  c.Scopes,
		Timeout: c.HTTPTimeout.Duration,
	}
}

func endpointFrom(c config.EBayEndpointConfig, tokenURL, authURL string) Endpoint {
	e := Endpoint{
		TokenURL:     c.TokenURL,
		AuthURL:      c.AuthURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RuName:       c.RuName,
	}
	if e.TokenURL == "" {
		e.TokenURL = tokenURL
	}
	if e.AuthURL == "" {
		e.AuthURL = authURL
	}
	return e
}

// TokenResponse is a successful grant response
type TokenResponse struct {
	AccessToken           secret.Plaintext
	RefreshToken          secret.Plaintext
	ExpiresIn             time.Duration
	RefreshTokenExpiresIn time.Duration
	TokenType             string
}

type tokenResponseBody struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
}

type errorResponseBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Client performs OAuth grant calls against eBay
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new eBay token client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExchangeCode trades an authorization code for the initial token pair.
// An empty redirectURI falls back to the environment's RuName.
func (c *Client) ExchangeCode(ctx context.Context, env domain.Environment, code, redirectURI string) (*TokenResponse, error) {
	endpoint, err := c.endpoint(env)
	if err != nil {
		return nil, err
	}
	if redirectURI == "" {
		redirectURI = endpoint.RuName
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	return c.grant(ctx, OpExchange, env, endpoint, form)
}

// Refresh runs the refresh_token grant. eBay requires the scope list on refresh.
func (c *Client) Refresh(ctx context.Context, env domain.Environment, refreshToken secret.Plaintext) (*TokenResponse, error) {
	endpoint, err := c.endpoint(env)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken.Reveal())
	if len(c.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}

	return c.grant(ctx, OpRefresh, env, endpoint, form)
}

// AuthorizationURL returns the user consent URL for the environment
func (c *Client) AuthorizationURL(env domain.Environment, state string) (string, error) {
	endpoint, err := c.endpoint(env)
	if err != nil {
		return "", err
	}

	authURL, err := url.Parse(endpoint.AuthURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse auth url: %w", err)
	}

	params := authURL.Query()
	params.Set("client_id", endpoint.ClientID)
	params.Set("redirect_uri", endpoint.RuName)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(c.cfg.Scopes, " "))
	params.Set("state", state)
	authURL.RawQuery = params.Encode()

	return authURL.String(), nil
}

// endpoint resolves and sanity-checks the endpoint for env without touching the network
func (c *Client) endpoint(env domain.Environment) (Endpoint, error) {
	if !env.Valid() {
		return Endpoint{}, fmt.Errorf("%w: unknown environment %q", ErrEnvironmentMismatch, env)
	}

	endpoint, ok := c.cfg.Endpoints[env]
	if !ok || endpoint.ClientID == "" || endpoint.ClientSecret == "" {
		return Endpoint{}, fmt.Errorf("%w: no client credentials configured for %s", ErrEnvironmentMismatch, env)
	}

	tokenURL, err := url.Parse(endpoint.TokenURL)
	if err != nil || tokenURL.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: invalid token url for %s", ErrEnvironmentMismatch, env)
	}

	isSandboxHost := strings.Contains(tokenURL.Hostname(), ".sandbox.")
	switch {
	case env == domain.EnvironmentProduction && isSandboxHost:
		return Endpoint{}, fmt.Errorf("%w: production account routed to sandbox endpoint", ErrEnvironmentMismatch)
	case env == domain.EnvironmentSandbox && tokenURL.Hostname() == "api.ebay.com":
		return Endpoint{}, fmt.Errorf("%w: sandbox account routed to production endpoint", ErrEnvironmentMismatch)
	}

	return endpoint, nil
}

func (c *Client) grant(ctx context.Context, op Op, env domain.Environment, endpoint Endpoint, form url.Values) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(endpoint.ClientID, endpoint.ClientSecret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(env, &Error{Op: op, Kind: transportKind(err), Err: err}, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.fail(env, &Error{Op: op, Kind: transportKind(err), StatusCode: resp.StatusCode, Err: err}, time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(env, upstreamError(op, resp.StatusCode, body), time.Since(start))
	}

	var parsed tokenResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, c.fail(env, &Error{Op: op, Kind: KindUpstream, StatusCode: resp.StatusCode, Description: "malformed token response", Err: err}, time.Since(start))
	}

	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return nil, c.fail(env, &Error{Op: op, Kind: KindUpstream, StatusCode: resp.StatusCode, Description: "token response missing access_token or expires_in"}, time.Since(start))
	}

	c.logger.Debug("eBay token grant succeeded",
		zap.String("op", string(op)),
		zap.String("environment", string(env)),
		zap.Bool("refresh_token_rotated", parsed.RefreshToken != ""),
		zap.Duration("latency", time.Since(start)),
	)

	return &TokenResponse{
		AccessToken:           secret.Plaintext(parsed.AccessToken),
		RefreshToken:          secret.Plaintext(parsed.RefreshToken),
		ExpiresIn:             time.Duration(parsed.ExpiresIn) * time.Second,
		RefreshTokenExpiresIn: time.Duration(parsed.RefreshTokenExpiresIn) * time.Second,
		TokenType:             parsed.TokenType,
	}, nil
}

// fail logs the classification only; upstream bodies can echo request parameters
func (c *Client) fail(env domain.Environment, e *Error, latency time.Duration) *Error {
	c.logger.Warn("eBay token grant failed",
		zap.String("op", string(e.Op)),
		zap.String("environment", string(env)),
		zap.String("kind", string(e.Kind)),
		zap.Int("status", e.StatusCode),
		zap.String("oauth_error", e.OAuthError),
		zap.Duration("latency", latency),
	)
	return e
}

func upstreamError(op Op, status int, body []byte) *Error {
	e := &Error{Op: op, Kind: KindUpstream, StatusCode: status}

	var parsed errorResponseBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.OAuthError = parsed.Error
		e.Description = parsed.Description
	}

	if e.OAuthError == "invalid_grant" {
		e.Kind = KindInvalidGrant
	}

	return e
}

func transportKind(err error) ErrorKind {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return KindTimeout
	}
	return KindNetwork
}
