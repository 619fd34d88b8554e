package main

import (
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/modelvault/internal/decryptmodel"
	"github.com/fyrsmithlabs/modelvault/internal/host"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/fyrsmithlabs/modelvault/internal/onnxhost"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loadTask    string
	loadDType   string
	loadInputs  []string
	loadOutputs []string
)

func init() {
	loadCmd.Flags().StringVar(&loadTask, "task", "feature-extraction", "pipeline task")
	loadCmd.Flags().StringVar(&loadDType, "dtype", "", "weight variant (q8, fp16, q4)")
	loadCmd.Flags().StringSliceVar(&loadInputs, "input", []string{"input_ids", "attention_mask"}, "model input names")
	loadCmd.Flags().StringSliceVar(&loadOutputs, "output", []string{"last_hidden_state"}, "model output names")
}

var loadCmd = &cobra.Command{
	Use:   "load <encrypted-dir>",
	Short: "Decrypt a model and build an ONNX Runtime session from memory",
	Long: `Decrypt a model into memory and create an ONNX Runtime session from
onnx/model{suffix}.onnx, where the suffix follows --dtype. The session is
built from bytes, so the weights are never written to disk.

The ONNX runtime library is located via onnx.library_path, ONNX_PATH or
~/.config/modelvault/lib (see 'modelvault init').

Examples:
  modelvault load ./models/bert.enc --model bert --dtype q8`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	rt, err := onnxhost.New(onnxhost.LibraryPath(app.cfg.ONNX.LibraryPath),
		onnxhost.WithLogger(app.logger.Underlying()))
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := openModel(args[0], decryptmodel.WithConstructor(rt.Constructor()))
	if err != nil {
		return err
	}

	ctx := logging.WithModel(cmd.Context(), resolveModelName(args[0]))
	if _, err := m.Task(ctx, loadTask, host.Options{
		DType:       loadDType,
		InputNames:  loadInputs,
		OutputNames: loadOutputs,
	}); err != nil {
		app.logger.Error(ctx, "pipeline construction failed", zap.Error(err))
		return err
	}

	cmd.Printf("Session ready: %s (%s)\n", onnxhost.ModelFile(loadDType), loadTask)
	return nil
}

// defaultModelName derives a model name from the encrypted directory,
// dropping a trailing ".enc".
func defaultModelName(encryptedDir string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Clean(encryptedDir)), ".enc")
}
