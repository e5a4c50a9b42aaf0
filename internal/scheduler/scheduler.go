package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of per-account work that needs a valid eBay access token
type Job interface {
	Name() string
	Run(ctx context.Context, account *domain.Account, accessToken secret.Plaintext) error
}

type Config struct {
	Interval    time.Duration
	Concurrency int
}

// TickResult summarizes one scheduler tick
type TickResult struct {
	Accounts int
	Skipped  int
	Failed   int
}

// Scheduler obtains a token for every active account on each tick and runs the registered jobs with it.
// Tokens that are close to expiry are refreshed here before any worker needs them.
type Scheduler struct {
	accounts repository.AccountRepository
	provider service.TokenProvider
	cfg      Config
	logger   *zap.Logger
	jobs     []Job
}

// New creates a new scheduler
func New(accounts repository.AccountRepository, provider service.TokenProvider, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Scheduler{
		accounts: accounts,
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("scheduler"),
	}
}

// Register adds a job executed for every account with a valid token.
// Register must not be called after Run.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Int("jobs", len(s.jobs)),
	)

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("Scheduler tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick processes every active account once. Per-account failures are logged and skipped.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	accounts, err := s.accounts.ListActiveWithCredential(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	results := make([]accountOutcome, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, account := range accounts {
		g.Go(func() error {
			results[i] = s.runAccount(gctx, account)
			return nil
		})
	}
	_ = g.Wait()

	result := TickResult{Accounts: len(accounts)}
	for _, outcome := range results {
		switch outcome {
		case outcomeSkipped:
			result.Skipped++
		case outcomeJobFailed:
			result.Failed++
		}
	}

	return result, nil
}

type accountOutcome int

const (
	outcomeOK accountOutcome = iota
	outcomeSkipped
	outcomeJobFailed
)

func (s *Scheduler) runAccount(ctx context.Context, account *domain.Account) (outcome accountOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled account run panicked",
				zap.String("account_id", account.ID),
				zap.Any("panic", r),
			)
			outcome = outcomeJobFailed
		}
	}()

	result := s.provider.GetValidAccessToken(ctx, domain.TokenRequest{
		AccountID:   account.ID,
		TriggeredBy: domain.TriggeredByScheduler,
	})
	if !result.Success {
		s.logger.Warn("Skipping account, no valid token",
			zap.String("account_id", account.ID),
			zap.String("error_code", string(result.ErrorCode)),
			zap.String("triggered_by", domain.TriggeredByScheduler),
			zap.Bool("needs_reauth", result.NeedsReauth),
		)
		return outcomeSkipped
	}

	outcome = outcomeOK
	for _, job := range s.jobs {
		if err := job.Run(ctx, account, result.AccessToken); err != nil {
			s.logger.Error("Scheduled job failed",
				zap.String("job", job.Name()),
				zap.String("account_id", account.ID),
				zap.Error(err),
			)
			outcome = outcomeJobFailed
		}
	}

	return outcome
}
