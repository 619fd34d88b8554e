//go:build !cgo

package onnxhost

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/modelvault/internal/host"
	"go.uber.org/zap"
)

// ErrNotAvailable is returned when the binary was built without CGO.
var ErrNotAvailable = errors.New("onnxhost: not available (binary built without CGO support)")

// Request is the input of a Handler built by a Runtime.
type Request struct {
	Inputs  []any
	Outputs []any
}

// Runtime is a stub for non-CGO builds.
type Runtime struct{}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger is accepted for API compatibility.
func WithLogger(*zap.Logger) Option {
	return func(*Runtime) {}
}

// New returns ErrNotAvailable.
func New(string, ...Option) (*Runtime, error) {
	return nil, ErrNotAvailable
}

// Constructor returns a constructor that always fails.
func (r *Runtime) Constructor() host.Constructor {
	return func(context.Context, *host.Environment, string, string, host.Options) (host.Handler, error) {
		return nil, ErrNotAvailable
	}
}

// Close is a no-op.
func (r *Runtime) Close() error { return nil }
