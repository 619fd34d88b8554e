package main

import (
	"fmt"

	"github.com/fyrsmithlabs/modelvault/internal/decryptmodel"
	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var modelName string

func init() {
	for _, c := range []*cobra.Command{verifyCmd, catCmd, loadCmd} {
		c.Flags().StringVarP(&modelName, "model", "m", "", "model name (default: base name of the encrypted dir)")
		rootCmd.AddCommand(c)
	}
}

var verifyCmd = &cobra.Command{
	Use:   "verify <encrypted-dir>",
	Short: "Decrypt a model into memory and list its files",
	Long: `Decrypt every file of encrypted-dir into an in-memory store and list
what was loaded. Any container that fails authentication aborts the load.

Examples:
  modelvault verify ./models/bert.enc --model bert`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var catCmd = &cobra.Command{
	Use:   "cat <encrypted-dir> <file>",
	Short: "Print one decrypted model file as a runtime would receive it",
	Long: `Decrypt a model into memory and write one file to stdout, served
through the same content negotiation a host runtime uses. Files the filter
does not select are refused.

Examples:
  modelvault cat ./models/bert.enc config.json --model bert`,
	Args: cobra.ExactArgs(2),
	RunE: runCat,
}

func resolveModelName(encryptedDir string) string {
	if modelName != "" {
		return modelName
	}
	return defaultModelName(encryptedDir)
}

// openModel prepares a decryptmodel.Model from the loaded configuration.
func openModel(encryptedDir string, opts ...decryptmodel.Option) (*decryptmodel.Model, error) {
	if err := app.cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	base := []decryptmodel.Option{
		decryptmodel.WithLogger(app.logger.Underlying()),
		decryptmodel.WithFilter(negotiate.ModelFileFilter{
			TextFile:   app.cfg.Filter.TextFile,
			BinaryFile: app.cfg.Filter.BinaryFile,
		}),
		decryptmodel.WithLoaderOptions(
			loader.WithConcurrency(app.cfg.Load.Concurrency),
			loader.WithTextExtensions(app.cfg.Load.TextExtensions...),
			loader.WithTracer(app.tel.Tracer(loader.InstrumentationName)),
		),
	}

	return decryptmodel.Use(encryptedDir, resolveModelName(encryptedDir), decryptmodel.EncryptOptions{
		Password: app.cfg.Crypto.Password.Value(),
		Salt:     app.cfg.Crypto.Salt.Value(),
	}, append(base, opts...)...)
}

func runVerify(cmd *cobra.Command, args []string) error {
	m, err := openModel(args[0])
	if err != nil {
		return err
	}

	ctx := logging.WithModel(cmd.Context(), resolveModelName(args[0]))
	if _, err := m.Pipeline(ctx); err != nil {
		app.logger.Error(ctx, "verification failed", zap.Error(err))
		return err
	}

	err = m.Store().Walk(func(rel string, c vfs.Content) error {
		kind := "bytes"
		if _, ok := c.(vfs.Text); ok {
			kind = "text"
		}
		cmd.Printf("%-5s %10d  %s\n", kind, c.Len(), rel)
		return nil
	})
	if err != nil {
		return err
	}

	cmd.Printf("OK: %d files, %d bytes\n", m.Store().Len(), m.Store().Size())
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	m, err := openModel(args[0])
	if err != nil {
		return err
	}

	name := resolveModelName(args[0])
	ctx := logging.WithModel(cmd.Context(), name)
	if _, err := m.Pipeline(ctx); err != nil {
		return err
	}

	data, ok, err := m.Environment().GetModelFile(ctx, name, args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not served for model %s", args[1], name)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
