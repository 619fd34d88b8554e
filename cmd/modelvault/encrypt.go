package main

import (
	"fmt"

	"github.com/fyrsmithlabs/modelvault/internal/encryptor"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(encryptCmd)
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <plain-dir> <encrypted-dir>",
	Short: "Encrypt every file of a model directory",
	Long: `Encrypt every file under plain-dir into encrypted-dir, keeping the
relative layout and appending .enc to each name.

.git/ and node_modules/ are skipped, along with any patterns listed in a
.modelvaultignore file at the root of plain-dir.

Examples:
  # Encrypt a downloaded model
  MODELVAULT_CRYPTO_PASSWORD=pw MODELVAULT_CRYPTO_SALT=s \
    modelvault encrypt ./models/bert ./models/bert.enc`,
	Args: cobra.ExactArgs(2),
	RunE: runEncrypt,
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	key, err := deriveKey()
	if err != nil {
		return err
	}

	enc, err := encryptor.New(key,
		encryptor.WithConcurrency(app.cfg.Encrypt.Concurrency),
		encryptor.WithLogger(app.logger.Underlying()),
		encryptor.WithMeter(app.tel.Meter("modelvault.encryptor")),
	)
	if err != nil {
		return err
	}

	ctx := logging.WithLoadID(cmd.Context(), logging.NewLoadID())
	res, err := enc.EncryptDir(ctx, args[0], args[1])
	if err != nil {
		app.logger.Error(ctx, "encryption failed", zap.String("source", args[0]), zap.Error(err))
		return err
	}

	cmd.Printf("Encrypted %d/%d files into %s\n", res.Encrypted, res.Files, res.DestDir)
	for _, f := range res.Failures {
		cmd.PrintErrf("  failed: %s: %v\n", f.Path, f.Err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", res.Failed, res.Files)
	}
	return nil
}
