//go:build cgo

package onnxhost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/modelvault/internal/host"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Request is the input of a Handler built by a Runtime. Outputs must hold
// one value per configured output name.
type Request struct {
	Inputs  []ort.ArbitraryTensor
	Outputs []ort.ArbitraryTensor
}

// The ONNX runtime environment is process wide.
var envMu sync.Mutex

func initialize(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initializing onnx runtime from %s: %w", libraryPath, err)
	}
	return nil
}

// Runtime builds ONNX sessions and owns them until Close.
type Runtime struct {
	logger *zap.Logger

	mu       sync.Mutex
	sessions []*ort.DynamicAdvancedSession
	closed   bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// New loads the ONNX runtime shared library at libraryPath.
func New(libraryPath string, opts ...Option) (*Runtime, error) {
	if libraryPath == "" {
		return nil, errors.New("onnxhost: runtime library path is empty (set ONNX_PATH or run 'modelvault init')")
	}
	if err := initialize(libraryPath); err != nil {
		return nil, err
	}

	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r, nil
}

// Constructor returns the host.Constructor backed by this runtime.
func (r *Runtime) Constructor() host.Constructor {
	return r.construct
}

func (r *Runtime) construct(ctx context.Context, env *host.Environment, task, modelPath string, opts host.Options) (host.Handler, error) {
	if len(opts.InputNames) == 0 || len(opts.OutputNames) == 0 {
		return nil, ErrMissingIONames
	}

	name := host.ModelName(modelPath)
	file := ModelFile(opts.DType)
	data, err := env.FetchModelFile(ctx, name, file)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data, opts.InputNames, opts.OutputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", modelPath, err)
	}
	if err := r.track(session); err != nil {
		_ = session.Destroy()
		return nil, err
	}

	r.logger.Info("onnx session created",
		zap.String("task", task),
		zap.String("model", name),
		zap.String("file", file),
		zap.Int("bytes", len(data)),
	)

	outputs := len(opts.OutputNames)
	return func(ctx context.Context, input any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var req Request
		switch v := input.(type) {
		case Request:
			req = v
		case *Request:
			req = *v
		default:
			return nil, fmt.Errorf("onnxhost: unsupported input %T", input)
		}
		if len(req.Outputs) != outputs {
			return nil, fmt.Errorf("onnxhost: got %d outputs, want %d", len(req.Outputs), outputs)
		}
		if err := session.Run(req.Inputs, req.Outputs); err != nil {
			return nil, fmt.Errorf("running %s: %w", task, err)
		}
		return req.Outputs, nil
	}, nil
}

func (r *Runtime) track(s *ort.DynamicAdvancedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("onnxhost: runtime closed")
	}
	r.sessions = append(r.sessions, s)
	return nil
}

// Close destroys every session built by the runtime.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range r.sessions {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	r.sessions = nil
	r.closed = true
	return errors.Join(errs...)
}
