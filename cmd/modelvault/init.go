package main

import (
	"fmt"

	"github.com/fyrsmithlabs/modelvault/internal/onnxhost"
	"github.com/spf13/cobra"
)

var (
	forceDownload  bool
	runtimeVersion string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Force re-download even if ONNX runtime exists")
	initCmd.Flags().StringVar(&runtimeVersion, "runtime-version", onnxhost.DefaultRuntimeVersion, "ONNX runtime release to download")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the ONNX runtime library",
	Long: `Download the ONNX runtime shared library used by 'modelvault load'.
The library is installed to:
  ~/.config/modelvault/lib/

If onnx.library_path or ONNX_PATH is set, that path takes precedence.

Examples:
  modelvault init
  modelvault init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	if !forceDownload {
		if path := onnxhost.LibraryPath(app.cfg.ONNX.LibraryPath); path != "" {
			cmd.Printf("ONNX runtime already installed at: %s\n", path)
			cmd.Println("Use --force to re-download.")
			return nil
		}
	}

	cmd.Printf("Downloading ONNX runtime v%s...\n", runtimeVersion)
	path, err := onnxhost.Download(cmd.Context(), runtimeVersion, app.logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to download ONNX runtime: %w", err)
	}

	cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
	return nil
}
