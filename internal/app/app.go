package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/config"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/handler"
	"github.com/prperemyshlev/ebay-connector/internal/scheduler"
	"github.com/prperemyshlev/ebay-connector/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra     Infrastructure
	config    *config.Config
	services  *Services
	router    *gin.Engine
	server    *http.Server
	scheduler *scheduler.Scheduler
	wg        sync.WaitGroup
}

func NewApp(infra Infrastructure, cfg *config.Config, opts ...ebay.Option) (*App, error) {
	services, err := NewServices(infra, cfg, opts...)
	if err != nil {
		return nil, err
	}

	healthChecker := NewHealthChecker(infra)
	tokenHandler := handler.NewTokenHandler(services.TokenProvider, services.Status, infra.Logger())
	connectHandler := handler.NewConnectHandler(services.Connect, infra.Logger())
	operatorHandler := handler.NewOperatorHandler(services.OperatorAuth)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	a := &App{
		infra:    infra,
		config:   cfg,
		services: services,
		router:   router,
	}

	a.setupRoutes(tokenHandler, connectHandler, operatorHandler, healthChecker)

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	if cfg.Scheduler.Enabled {
		a.scheduler = scheduler.New(services.Repositories.Account, services.TokenProvider, scheduler.Config{
			Interval:    cfg.Scheduler.Interval.Duration,
			Concurrency: cfg.Scheduler.Concurrency,
		}, infra.Logger())
	}

	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Services() *Services {
	return a.services
}

func (a *App) setupRoutes(
	tokenHandler *handler.TokenHandler,
	connectHandler *handler.ConnectHandler,
	operatorHandler *handler.OperatorHandler,
	healthChecker *HealthChecker,
) {
	cfg := a.config
	limiter := a.services.RateLimiter
	logger := a.infra.Logger()

	a.router.GET("/metrics", observability.PrometheusHandler(a.infra.MetricsHandler()))
	a.router.GET("/health", healthChecker.Handler)

	api := a.router.Group("/api/v1")
	{
		api.POST("/operators/login",
			handler.RateLimitMiddleware(limiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey, logger),
			operatorHandler.Login,
		)
		api.GET("/ebay/callback", connectHandler.Callback)

		operator := api.Group("")
		operator.Use(handler.OperatorAuthMiddleware(a.services.OperatorAuth))
		{
			operator.GET("/accounts/token-status", tokenHandler.ListStatus)
			operator.GET("/accounts/:id/token-status", tokenHandler.Status)
			operator.POST("/accounts/:id/token/refresh", tokenHandler.Refresh)
			operator.GET("/accounts/:id/connect", connectHandler.Connect)
			operator.POST("/debug/ebay/token",
				handler.RateLimitMiddleware(limiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.OperatorKey, logger),
				tokenHandler.DebugToken,
			)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.scheduler != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.scheduler.Run(ctx)
		}()
	}

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
			zap.Bool("scheduler", a.scheduler != nil),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	cancel()
	a.wg.Wait()

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// The server drains in-flight refreshes before the connections they use are closed.
	serverErr := a.server.Shutdown(ctx)
	infraErr := a.infra.Shutdown(ctx)

	err := errors.Join(serverErr, infraErr)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
