// Package cmd contains all CLI commands for crmctl
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/natserract/zoho/pkg/config"
)

var (
	verbose bool
	timeout time.Duration
	logger  *zap.Logger
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crmctl",
	Short: "Zoho CRM command line client",
	Long: `crmctl talks to the Zoho CRM REST API using the credentials in the
ZOHO_* environment variables (a .env file in the working directory is read
too).

Example usage:
  crmctl token                         # Exchange the refresh token, print the access token
  crmctl import -m Leads -f leads.json # Insert records from a JSON array
  crmctl export Leads Contacts         # Copy whole modules into Postgres`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	return err
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-request timeout (default ZOHO_TIMEOUT or 30s)")
}

func initLogger() error {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

// loadConfig reads the client configuration and applies --timeout.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	logger.Debug("Configuration loaded",
		zap.String("accounts_url", cfg.AccountsURL),
		zap.String("api_path", cfg.APIPath),
		zap.Duration("timeout", cfg.Timeout),
		zap.Bool("preset_token", cfg.AccessToken != ""))

	return cfg, nil
}
