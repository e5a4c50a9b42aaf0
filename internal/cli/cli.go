// Package cli implements tokenctl, the operator command line for the token provider.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prperemyshlev/ebay-connector/internal/app"
	"github.com/prperemyshlev/ebay-connector/internal/config"
	"github.com/prperemyshlev/ebay-connector/internal/repository"
	"github.com/prperemyshlev/ebay-connector/internal/secret"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"github.com/spf13/cobra"
)

// Backend is what the commands operate on
type Backend struct {
	TokenProvider service.TokenProvider
	Status        service.StatusService
	Accounts      repository.AccountRepository
	Cipher        *secret.Cipher
	JWTManager    *utils.JWTManager
	BCryptCost    int
}

// Loader builds the backend and returns a function releasing it
type Loader func(ctx context.Context) (*Backend, func(), error)

// LoadBackend wires the backend from the environment, the same way the server does
func LoadBackend(ctx context.Context) (*Backend, func(), error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	infra, err := app.NewInfrastructure(ctx, *cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	services, err := app.NewServices(infra, cfg)
	if err != nil {
		_ = infra.Shutdown(ctx)
		return nil, nil, err
	}

	backend := &Backend{
		TokenProvider: services.TokenProvider,
		Status:        services.Status,
		Accounts:      services.Repositories.Account,
		Cipher:        services.Cipher,
		JWTManager:    services.JWTManager,
		BCryptCost:    cfg.Security.BCryptCost,
	}

	return backend, func() { _ = infra.Shutdown(context.Background()) }, nil
}

// Execute runs tokenctl and exits non-zero on failure
func Execute() {
	if err := NewRootCmd(LoadBackend).Execute(); err != nil {
		os.Exit(1)
	}
}

type backendKey struct{}

// NewRootCmd builds the command tree. The backend is loaded once per invocation.
func NewRootCmd(load Loader) *cobra.Command {
	var release func()

	rootCmd := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Inspect and refresh eBay OAuth credentials",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			backend, done, err := load(cmd.Context())
			if err != nil {
				return err
			}
			release = done
			cmd.SetContext(context.WithValue(cmd.Context(), backendKey{}, backend))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if release != nil {
				release()
			}
		},
	}

	rootCmd.AddCommand(
		tokenCmd(),
		accountCmd(),
		cipherCmd(),
		operatorCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	return rootCmd
}

func backendFrom(cmd *cobra.Command) (*Backend, error) {
	backend, ok := cmd.Context().Value(backendKey{}).(*Backend)
	if !ok || backend == nil {
		return nil, errors.New("backend is not initialized")
	}
	return backend, nil
}
