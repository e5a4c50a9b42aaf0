package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	signalIsolated          = "isolated"
	signalSharedKeyMismatch = "shared_key_mismatch"
)

// TokenProviderConfig holds the tunables of the token provider
type TokenProviderConfig struct {
	FreshnessWindow       time.Duration
	ReauthThreshold       int
	DecryptAlertThreshold int
}

// TokenProviderDeps are the collaborators of the token provider
type TokenProviderDeps struct {
	Accounts       repository.AccountRepository
	Credentials    repository.CredentialRepository
	Cipher         *secret.Cipher
	Exchanger      TokenExchanger
	Locker         AccountLocker
	DecryptMonitor DecryptFailureRecorder
	Metrics        TokenMetrics
}

// TokenProviderOption configures the token provider
type TokenProviderOption func(*tokenProvider)

// WithClock overrides the time source
func WithClock(now func() time.Time) TokenProviderOption {
	return func(p *tokenProvider) {
		p.now = now
	}
}

// tokenProvider implements TokenProvider interface
type tokenProvider struct {
	accounts       repository.AccountRepository
	credentials    repository.CredentialRepository
	cipher         *secret.Cipher
	exchanger      TokenExchanger
	locker         AccountLocker
	decryptMonitor DecryptFailureRecorder
	metrics        TokenMetrics
	cfg            TokenProviderConfig
	logger         *zap.Logger

	refreshes singleflight.Group
	now       func() time.Time
}

// NewTokenProvider creates the token provider
func NewTokenProvider(deps TokenProviderDeps, cfg TokenProviderConfig, logger *zap.Logger, opts ...TokenProviderOption) TokenProvider {
	p := &tokenProvider{
		accounts:       deps.Accounts,
		credentials:    deps.Credentials,
		cipher:         deps.Cipher,
		exchanger:      deps.Exchanger,
		locker:         deps.Locker,
		decryptMonitor: deps.DecryptMonitor,
		metrics:        deps.Metrics,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetValidAccessToken returns a usable access token for the account or a structured failure.
// It never returns an error value and never returns a stored (encrypted) value as a token.
func (p *tokenProvider) GetValidAccessToken(ctx context.Context, req domain.TokenRequest) domain.TokenResult {
	start := p.now()

	result := p.guard(req, p.getValidAccessToken(ctx, req, start))
	p.observe(ctx, req, result, p.now().Sub(start))

	return result
}

func (p *tokenProvider) getValidAccessToken(ctx context.Context, req domain.TokenRequest, start time.Time) domain.TokenResult {
	account, err := p.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenFailure("", domain.ErrCodeAccountNotFound, "account not found")
		}
		return p.storageFailure("", "load account", err)
	}

	env := account.Environment
	if !account.IsActive {
		return domain.TokenFailure(env, domain.ErrCodeAccountInactive, "account is deactivated")
	}
	if !env.Valid() {
		return domain.TokenFailure(env, domain.ErrCodeEnvironmentMismatch, fmt.Sprintf("account environment %q is not supported", env))
	}

	credential, failure, ok := p.loadCredential(ctx, account)
	if !ok {
		return failure
	}

	accessToken, err := p.cipher.Decrypt(credential.AccessToken)
	if err != nil {
		return p.decryptFailed(ctx, account, "access_token")
	}

	if !p.needsRefresh(req.ForceRefresh, accessToken, credential, start) {
		return p.success(env, accessToken, credential.ExpiresAt, domain.SourceExisting)
	}

	// Joined callers share the leader's result, so the leader must not be cancelled by its own caller.
	v, _, _ := p.refreshes.Do(account.ID, func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx), account, credential, start), nil
	})

	return v.(domain.TokenResult)
}

// loadCredential reads the credential and checks it belongs to the account's environment
func (p *tokenProvider) loadCredential(ctx context.Context, account *domain.Account) (*domain.Credential, domain.TokenResult, bool) {
	credential, err := p.credentials.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.TokenFailure(account.Environment, domain.ErrCodeNoCredential, "account has not completed eBay authorization"), false
		}
		return nil, p.storageFailure(account.Environment, "load credential", err), false
	}

	if credential.AccessToken == "" && credential.RefreshToken == "" {
		return nil, domain.TokenFailure(account.Environment, domain.ErrCodeNoCredential, "account has not completed eBay authorization"), false
	}

	if credential.Environment != account.Environment {
		msg := fmt.Sprintf("credential was issued in %s but account is bound to %s", credential.Environment, account.Environment)
		return nil, domain.TokenFailure(account.Environment, domain.ErrCodeEnvironmentMismatch, msg), false
	}

	return credential, domain.TokenResult{}, true
}

func (p *tokenProvider) needsRefresh(force bool, accessToken secret.Plaintext, credential *domain.Credential, now time.Time) bool {
	if force || accessToken == "" || credential.ExpiresAt == nil {
		return true
	}
	return credential.ExpiresAt.Sub(now) < p.cfg.FreshnessWindow
}

// refresh runs under the per-account lock. observed is the row the caller saw before deciding to refresh.
func (p *tokenProvider) refresh(ctx context.Context, account *domain.Account, observed *domain.Credential, start time.Time) domain.TokenResult {
	env := account.Environment

	release, err := p.locker.Acquire(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return p.afterContention(ctx, account, observed, start)
		}
		return p.storageFailure(env, "acquire account lock", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			p.logger.Warn("Failed to release account lock", zap.String("account_id", account.ID), zap.Error(err))
		}
	}()

	credential, failure, ok := p.loadCredential(ctx, account)
	if !ok {
		return failure
	}

	if result, ok := p.refreshedElsewhere(account, observed, credential, start); ok {
		return result
	}

	refreshToken, err := p.cipher.Decrypt(credential.RefreshToken)
	if err != nil {
		return p.decryptFailed(ctx, account, "refresh_token")
	}
	if refreshToken == "" {
		return domain.TokenFailure(env, domain.ErrCodeNoCredential, "no refresh token stored; re-authorization required")
	}

	refreshStart := p.now()
	resp, err := p.exchanger.Refresh(ctx, env, refreshToken)
	p.metrics.RecordRefresh(ctx, p.now().Sub(refreshStart), err == nil)
	if err != nil {
		if errors.Is(err, ebay.ErrEnvironmentMismatch) {
			return domain.TokenFailure(env, domain.ErrCodeEnvironmentMismatch, err.Error())
		}
		return p.refreshFailed(ctx, account, credential, err)
	}

	update, err := p.tokenUpdate(credential, refreshToken, resp, p.now())
	if err != nil {
		return p.storageFailure(env, "encrypt refreshed tokens", err)
	}

	if err := p.credentials.UpdateTokens(ctx, account.ID, credential.RefreshToken, update); err != nil {
		if errors.Is(err, repository.ErrWriteConflict) {
			p.logger.Error("Refreshed token lost a write race",
				zap.String("account_id", account.ID),
				zap.Bool("refresh_token_rotated", resp.RefreshToken != ""),
			)
			return domain.TokenFailure(env, domain.ErrCodeWriteConflict, "credential was modified by another writer during refresh")
		}
		return p.storageFailure(env, "store refreshed tokens", err)
	}

	return p.success(env, resp.AccessToken, &update.ExpiresAt, domain.SourceRefreshed)
}

// afterContention handles a lock that stayed held for the whole wait budget: the other
// holder's refresh is authoritative if it has landed.
func (p *tokenProvider) afterContention(ctx context.Context, account *domain.Account, observed *domain.Credential, start time.Time) domain.TokenResult {
	credential, failure, ok := p.loadCredential(ctx, account)
	if !ok {
		return failure
	}

	if result, ok := p.refreshedElsewhere(account, observed, credential, start); ok {
		return result
	}

	return domain.TokenFailure(account.Environment, domain.ErrCodeWriteConflict, "another process is refreshing this account; retry shortly")
}

// refreshedElsewhere returns the current token when another writer replaced it after this call began
func (p *tokenProvider) refreshedElsewhere(account *domain.Account, observed, current *domain.Credential, start time.Time) (domain.TokenResult, bool) {
	if current.AccessToken == observed.AccessToken && !current.RefreshedSince(start) {
		return domain.TokenResult{}, false
	}
	if current.ExpiresAt == nil || !current.ExpiresAt.After(p.now()) {
		return domain.TokenResult{}, false
	}

	accessToken, err := p.cipher.Decrypt(current.AccessToken)
	if err != nil || accessToken == "" {
		return domain.TokenResult{}, false
	}

	p.logger.Debug("Using token refreshed by another writer", zap.String("account_id", account.ID))
	return p.success(account.Environment, accessToken, current.ExpiresAt, domain.SourceRefreshed), true
}

// tokenUpdate encrypts a refresh response. A response without a refresh token keeps the stored one,
// re-encrypted when the row still holds it in plaintext.
func (p *tokenProvider) tokenUpdate(credential *domain.Credential, current secret.Plaintext, resp *ebay.TokenResponse, now time.Time) (domain.TokenUpdate, error) {
	accessToken, err := p.cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return domain.TokenUpdate{}, err
	}

	update := domain.TokenUpdate{
		AccessToken:  accessToken,
		RefreshToken: credential.RefreshToken,
		ExpiresAt:    now.Add(resp.ExpiresIn),
		RefreshedAt:  now,
	}

	next := resp.RefreshToken
	if next == "" && !credential.RefreshToken.IsEncrypted() {
		next = current
	}
	if next != "" {
		refreshToken, err := p.cipher.Encrypt(next)
		if err != nil {
			return domain.TokenUpdate{}, err
		}
		update.RefreshToken = refreshToken
	}

	if resp.RefreshTokenExpiresIn > 0 {
		refreshExpiresAt := now.Add(resp.RefreshTokenExpiresIn)
		update.RefreshTokenExpiresAt = &refreshExpiresAt
	}

	return update, nil
}

func (p *tokenProvider) refreshFailed(ctx context.Context, account *domain.Account, credential *domain.Credential, err error) domain.TokenResult {
	subCode := string(ebay.KindNetwork)
	reason := err.Error()

	var ebayErr *ebay.Error
	if errors.As(err, &ebayErr) {
		subCode = string(ebayErr.Kind)
		if ebayErr.Description != "" {
			reason = fmt.Sprintf("%s: %s", reason, ebayErr.Description)
		}
	}

	failures, recordErr := p.credentials.RecordRefreshFailure(ctx, account.ID, reason)
	if recordErr != nil {
		p.logger.Error("Failed to record refresh failure", zap.String("account_id", account.ID), zap.Error(recordErr))
		failures = credential.RefreshFailureCount + 1
	}

	result := domain.TokenFailure(account.Environment, domain.ErrCodeRefreshFailed, reason)
	result.ErrorSubCode = subCode
	result.NeedsReauth = domain.NeedsReauth(failures, p.cfg.ReauthThreshold)

	return result
}

func (p *tokenProvider) decryptFailed(ctx context.Context, account *domain.Account, field string) domain.TokenResult {
	signal := signalIsolated
	distinct := 1

	if p.decryptMonitor != nil {
		count, err := p.decryptMonitor.Record(ctx, account.ID)
		if err != nil {
			p.logger.Warn("Failed to record decrypt failure", zap.Error(err))
		} else {
			distinct = count
		}
	}
	if p.cfg.DecryptAlertThreshold > 0 && distinct >= p.cfg.DecryptAlertThreshold {
		signal = signalSharedKeyMismatch
	}

	p.logger.Error("Stored token cannot be decrypted",
		zap.String("account_id", account.ID),
		zap.String("field", field),
		zap.String("signal", signal),
		zap.Int("distinct_accounts", distinct),
	)

	return domain.TokenFailure(account.Environment, domain.ErrCodeDecryptFailed, "stored token cannot be decrypted with the configured key")
}

func (p *tokenProvider) storageFailure(env domain.Environment, op string, err error) domain.TokenResult {
	p.logger.Error("Token provider storage failure", zap.String("op", op), zap.Error(err))
	return domain.TokenFailure(env, domain.ErrCodeStorageError, fmt.Sprintf("failed to %s", op))
}

func (p *tokenProvider) success(env domain.Environment, token secret.Plaintext, expiresAt *time.Time, source domain.TokenSource) domain.TokenResult {
	return domain.TokenResult{
		Success:          true,
		AccessToken:      token,
		Environment:      env,
		Source:           source,
		ExpiresAt:        expiresAt,
		TokenFingerprint: secret.Fingerprint(token),
	}
}

// guard is the last check before a result leaves the provider
func (p *tokenProvider) guard(req domain.TokenRequest, result domain.TokenResult) domain.TokenResult {
	if !result.Success {
		result.AccessToken = ""
		result.TokenFingerprint = ""
		return result
	}

	if result.AccessToken == "" || secret.Ciphertext(result.AccessToken).IsEncrypted() {
		p.logger.Error("Refusing to return a stored value as an access token", zap.String("account_id", req.AccountID))
		return domain.TokenFailure(result.Environment, domain.ErrCodeDecryptFailed, "stored token cannot be decrypted with the configured key")
	}

	return result
}

func (p *tokenProvider) observe(ctx context.Context, req domain.TokenRequest, result domain.TokenResult, duration time.Duration) {
	p.metrics.RecordCall(ctx, req.TriggeredBy, result.Source, result.ErrorCode)

	fields := []zap.Field{
		zap.String("account_id", req.AccountID),
		zap.String("triggered_by", req.TriggeredBy),
		zap.String("api_family", req.APIFamily),
		zap.String("environment", string(result.Environment)),
		zap.String("source", string(result.Source)),
		zap.Duration("duration", duration),
	}

	if result.Success {
		p.logger.Info("Access token issued", append(fields, zap.String("token_fingerprint", result.TokenFingerprint))...)
		return
	}

	p.logger.Warn("Access token unavailable", append(fields,
		zap.String("error_code", string(result.ErrorCode)),
		zap.String("error_sub_code", result.ErrorSubCode),
		zap.Bool("needs_reauth", result.NeedsReauth),
	)...)
}

type noopMetrics struct{}

func (noopMetrics) RecordCall(context.Context, string, domain.TokenSource, domain.ErrorCode) {}
func (noopMetrics) RecordRefresh(context.Context, time.Duration, bool) {}
