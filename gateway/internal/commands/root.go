// Package commands implements gatewayctl, the gateway's operator CLI.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/config"
	"github.com/inventra-labs/inventra/gateway/internal/database"
	"github.com/inventra-labs/inventra/gateway/internal/repository"
	"github.com/inventra-labs/inventra/gateway/internal/service"
	"github.com/inventra-labs/inventra/gateway/internal/tokens"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "Inventra gateway administration",
	Long: `gatewayctl administers an Inventra gateway deployment.

It reads the same configuration as the gateway (config file and GATEWAY_*
environment variables) and talks to the identity store directly.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWithWriter(cmd.ErrOrStderr(), slog.LevelWarn, "text").
			With(logging.Service("gatewayctl"))
		return nil
	},
}

// Execute runs the CLI and prints any error.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), "%v", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/inventra/gateway/config.yaml)")
}

// openStore opens the configured identity store without migrating it.
func openStore(cmd *cobra.Command) (repository.Repository, error) {
	if cfg.Database.Type != "postgres" {
		printWarn(cmd.ErrOrStderr(), "database.type is %q; changes will not outlive this command", cfg.Database.Type)
	}
	return database.OpenRepository(cmd.Context(), cfg.Database, false, logger)
}

func newAuthService(repo repository.Repository) *service.AuthService {
	return service.NewAuthService(repo, tokens.NewManager(cfg.Auth.JWTSecret),
		service.WithBcryptCost(cfg.Auth.BcryptCost),
		service.WithLogger(logger),
	)
}

func requirePostgres() error {
	if cfg.Database.Type != "postgres" {
		return fmt.Errorf("this command requires database.type postgres, got %q", cfg.Database.Type)
	}
	return nil
}
