// Package onnxhost is a host runtime that builds ONNX Runtime sessions from
// model bytes served by a host.Environment, so model weights never need to
// exist on disk.
package onnxhost

import (
	"errors"
	"path"
)

// ErrMissingIONames indicates options without input or output names.
var ErrMissingIONames = errors.New("onnxhost: input and output names are required")

// ModelFile returns the weights file requested for dtype, following the
// Hugging Face ONNX export layout.
func ModelFile(dtype string) string {
	return path.Join("onnx", "model"+dtypeSuffix(dtype)+".onnx")
}

func dtypeSuffix(dtype string) string {
	switch dtype {
	case "q8", "int8", "uint8":
		return "_quantized"
	case "fp16":
		return "_fp16"
	case "q4":
		return "_q4"
	default:
		return ""
	}
}
