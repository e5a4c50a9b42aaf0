package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newFakeAccounts(accounts ...*domain.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) Create(_ context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[account.ID]; ok {
		return repository.ErrDuplicateAccount
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, repository.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) List(_ context.Context) ([]*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Account
	for _, a := range f.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAccounts) ListActiveWithCredential(ctx context.Context) ([]*domain.Account, error) {
	all, _ := f.List(ctx)
	var out []*domain.Account
	for _, a := range all {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) SetActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsActive = active
	return nil
}

// fakeCredentials mirrors the guarded update semantics of the Postgres repository
type fakeCredentials struct {
	mu          sync.Mutex
	credentials map[string]*domain.Credential
	updates     int
	updateErr   error
}

func newFakeCredentials(credentials ...*domain.Credential) *fakeCredentials {
	f := &fakeCredentials{credentials: make(map[string]*domain.Credential)}
	for _, c := range credentials {
		f.credentials[c.AccountID] = c
	}
	return f
}

func (f *fakeCredentials) get(accountID string) domain.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.credentials[accountID]
}

func (f *fakeCredentials) set(accountID string, mutate func(c *domain.Credential)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.credentials[accountID])
}

func (f *fakeCredentials) GetByAccountID(_ context.Context, accountID string) (*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[accountID]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", accountID, repository.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCredentials) Upsert(_ context.Context, credential *domain.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := credential.Validate(); err != nil {
		return err
	}
	cp := *credential
	cp.RefreshFailureCount = 0
	cp.LastRefreshError = nil
	f.credentials[credential.AccountID] = &cp
	return nil
}

func (f *fakeCredentials) UpdateTokens(_ context.Context, accountID string, expected secret.Ciphertext, update domain.TokenUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, v := range []secret.Ciphertext{update.AccessToken, update.RefreshToken} {
		if v != "" && !v.IsEncrypted() {
			return fmt.Errorf("%w: token value is not encrypted", repository.ErrInvalidCredential)
		}
	}
	c, ok := f.credentials[accountID]
	if !ok || c.RefreshToken != expected {
		return repository.ErrWriteConflict
	}
	f.updates++
	c.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		c.RefreshToken = update.RefreshToken
	}
	expiresAt := update.ExpiresAt
	c.ExpiresAt = &expiresAt
	if update.RefreshTokenExpiresAt != nil {
		c.RefreshTokenExpiresAt = update.RefreshTokenExpiresAt
	}
	refreshedAt := update.RefreshedAt
	c.LastRefreshedAt = &refreshedAt
	c.LastRefreshError = nil
	c.RefreshFailureCount = 0
	return nil
}

func (f *fakeCredentials) RecordRefreshFailure(_ context.Context, accountID, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[accountID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	c.LastRefreshError = &reason
	c.RefreshFailureCount++
	return c.RefreshFailureCount, nil
}

func (f *fakeCredentials) List(_ context.Context) ([]*domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Credential
	for _, c := range f.credentials {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type fakeExchanger struct {
	refreshCalls  int32
	exchangeCalls int32

	// entered is signalled on every refresh call when set; gate blocks the call until closed
	entered chan struct{}
	gate    chan struct{}

	onRefresh  func()
	refresh    func(refreshToken secret.Plaintext) (*ebay.TokenResponse, error)
	exchange   func(code string) (*ebay.TokenResponse, error)
	lastEnv    domain.Environment
	lastMu     sync.Mutex
	authURLErr error
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, env domain.Environment, code, _ string) (*ebay.TokenResponse, error) {
	atomic.AddInt32(&f.exchangeCalls, 1)
	f.lastMu.Lock()
	f.lastEnv = env
	f.lastMu.Unlock()
	return f.exchange(code)
}

func (f *fakeExchanger) Refresh(_ context.Context, env domain.Environment, refreshToken secret.Plaintext) (*ebay.TokenResponse, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	f.lastMu.Lock()
	f.lastEnv = env
	f.lastMu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.onRefresh != nil {
		f.onRefresh()
	}
	return f.refresh(refreshToken)
}

func (f *fakeExchanger) AuthorizationURL(env domain.Environment, state string) (string, error) {
	if f.authURLErr != nil {
		return "", f.authURLErr
	}
	return fmt.Sprintf("https://auth.example.test/%s?state=%s", env, state), nil
}

func (f *fakeExchanger) calls() int32 {
	return atomic.LoadInt32(&f.refreshCalls)
}

// memoryLocker is a process-local AccountLocker
type memoryLocker struct {
	mu        sync.Mutex
	held      map[string]bool
	deny      bool
	onAcquire func()
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(ctx context.Context, accountID string) (func(context.Context) error, error) {
	if l.onAcquire != nil {
		l.onAcquire()
	}
	if l.deny {
		return nil, ErrLockNotAcquired
	}
	for {
		l.mu.Lock()
		if !l.held[accountID] {
			l.held[accountID] = true
			l.mu.Unlock()
			return func(context.Context) error {
				l.mu.Lock()
				defer l.mu.Unlock()
				delete(l.held, accountID)
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ErrLockNotAcquired
		case <-time.After(time.Millisecond):
		}
	}
}

type fakeMonitor struct {
	mu       sync.Mutex
	accounts map[string]bool
}

func (m *fakeMonitor) Record(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accounts == nil {
		m.accounts = make(map[string]bool)
	}
	m.accounts[accountID] = true
	return len(m.accounts), nil
}

type recordedCall struct {
	triggeredBy string
	source      domain.TokenSource
	code        domain.ErrorCode
}

type fakeMetrics struct {
	mu        sync.Mutex
	calls     []recordedCall
	refreshes []bool
}

func (m *fakeMetrics) RecordCall(_ context.Context, triggeredBy string, source domain.TokenSource, code domain.ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{triggeredBy, source, code})
}

func (m *fakeMetrics) RecordRefresh(_ context.Context, _ time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, success)
}

type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]ConnectState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]ConnectState)}
}

func (s *memoryStateStore) Save(_ context.Context, state string, value ConnectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = value
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (*ConnectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.states[state]
	if !ok {
		return nil, ErrInvalidState
	}
	delete(s.states, state)
	return &value, nil
}

func (s *memoryStateStore) only() (string, ConnectState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.states {
		return k, v
	}
	return "", ConnectState{}
}
