package app

import (
	"fmt"

	"github.com/prperemyshlev/ebay-connector/internal/config"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"github.com/prperemyshlev/ebay-connector/pkg/observability"
)

const meterName = "github.com/prperemyshlev/ebay-connector/token"

// Services is the wired service graph shared by the server and the operator CLI
type Services struct {
	Repositories  *repository.Repositories
	Cipher        *secret.Cipher
	EBay          *ebay.Client
	JWTManager    *utils.JWTManager
	RateLimiter   *service.RateLimiter
	TokenProvider service.TokenProvider
	Connect       service.ConnectService
	Status        service.StatusService
	OperatorAuth  service.OperatorAuthService
}

func NewServices(infra Infrastructure, cfg *config.Config, opts ...ebay.Option) (*Services, error) {
	repos := repository.NewRepositories(infra.Postgres())

	cipher, err := secret.NewCipher(cfg.Token.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}

	metrics, err := observability.NewTokenMetrics(infra.MeterProvider().Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("failed to create token metrics: %w", err)
	}

	logger := infra.Logger()
	ebayClient := ebay.NewClient(ebay.NewConfig(cfg.EBay), logger, opts...)

	tokenProvider := service.NewTokenProvider(
		service.TokenProviderDeps{
			Accounts:       repos.Account,
			Credentials:    repos.Credential,
			Cipher:         cipher,
			Exchanger:      ebayClient,
			Locker:         service.NewRefreshLock(infra.Redis(), cfg.Token.LockTTL.Duration, cfg.Token.LockWait.Duration),
			DecryptMonitor: service.NewDecryptMonitor(infra.Redis(), cfg.DecryptAlert.Window.Duration),
			Metrics:        metrics,
		},
		service.TokenProviderConfig{
			FreshnessWindow:       cfg.Token.FreshnessWindow.Duration,
			ReauthThreshold:       cfg.Token.ReauthThreshold,
			DecryptAlertThreshold: cfg.DecryptAlert.Threshold,
		},
		logger,
	)

	connect := service.NewConnectService(
		repos.Account,
		repos.Credential,
		cipher,
		ebayClient,
		service.NewRedisStateStore(infra.Redis()),
		cfg.EBay.Scopes,
		cfg.Token.ReauthThreshold,
		logger,
	)

	jwtManager := utils.NewJWTManager(cfg.Operator.JWTSecret, cfg.Operator.TokenExpiry.Duration)

	return &Services{
		Repositories:  repos,
		Cipher:        cipher,
		EBay:          ebayClient,
		JWTManager:    jwtManager,
		RateLimiter:   service.NewRateLimiter(infra.Redis()),
		TokenProvider: tokenProvider,
		Connect:       connect,
		Status:        service.NewStatusService(repos.Credential, cfg.Token.ReauthThreshold),
		OperatorAuth:  service.NewOperatorAuthService(cfg.Operator.Username, cfg.Operator.PasswordHash, jwtManager),
	}, nil
}
