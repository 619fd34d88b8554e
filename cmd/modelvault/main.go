// Package main implements the modelvault CLI: encrypt model directories
// offline and inspect encrypted models by decrypting them into memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/modelvault/internal/config"
	"github.com/fyrsmithlabs/modelvault/internal/keyderive"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/fyrsmithlabs/modelvault/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	configPath string
	password   string
	salt       string
	logLevel   string

	version = "dev"
)

// app holds what setup builds for the running command. main tears it down
// after the command returns, including on error.
var app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if terr := teardown(ctx); terr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", terr)
	}
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modelvault",
	Short: "Encrypt ML model assets at rest and load them into memory",
	Long: `modelvault encrypts every file of a model directory with AES-256-GCM
under a key derived from a password and salt. Encrypted models are decrypted
straight into an in-memory filesystem at load time; plaintext never touches
the disk.

Credentials come from --password/--salt, MODELVAULT_CRYPTO_PASSWORD and
MODELVAULT_CRYPTO_SALT, or crypto.password/crypto.salt in
~/.config/modelvault/config.yaml.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/modelvault/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "key derivation password")
	rootCmd.PersistentFlags().StringVar(&salt, "salt", "", "key derivation salt")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}
	if password != "" {
		cfg.Crypto.Password = config.Secret(password)
	}
	if salt != "" {
		cfg.Crypto.Salt = config.Secret(salt)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	tel, err := telemetry.New(cmd.Context(), telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		return err
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return err
	}
	logCfg.Output.OTEL = tel.LoggerProvider() != nil
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return err
	}

	app.cfg = cfg
	app.logger = logger
	app.tel = tel
	return nil
}

func teardown(ctx context.Context) error {
	var errs []error
	if app.logger != nil {
		errs = append(errs, app.logger.Sync())
	}
	if app.tel != nil {
		errs = append(errs, app.tel.Shutdown(context.WithoutCancel(ctx)))
	}
	return errors.Join(errs...)
}

// deriveKey derives the model key from the configured credentials.
func deriveKey() ([]byte, error) {
	if err := app.cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	key, err := keyderive.Derive(app.cfg.Crypto.Password.Value(), app.cfg.Crypto.Salt.Value())
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
