// Package host defines the contract between modelvault and an inference
// runtime: the runtime asks its Environment for model files, and modelvault
// answers from the virtual store.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrModelFileNotFound is returned by FetchModelFile when the hook declines.
var ErrModelFileNotFound = errors.New("model file not available")

// Options are passed through to the runtime when a pipeline is built.
type Options struct {
	// DType selects a weight variant, e.g. "q8", "fp16", "q4". Empty selects
	// the full precision model.
	DType       string
	InputNames  []string
	OutputNames []string
	Extra       map[string]any
}

// Handler runs inference. The input and output types are runtime specific.
type Handler func(ctx context.Context, input any) (any, error)

// ModelFileFunc returns the bytes of filePath within modelName. ok is false
// when the file is not served, in which case the runtime may fall back to
// its default source.
type ModelFileFunc func(ctx context.Context, modelName, filePath string) (data []byte, ok bool, err error)

// Constructor builds a Handler for task from the model at modelPath, reading
// files through env.
type Constructor func(ctx context.Context, env *Environment, task, modelPath string, opts Options) (Handler, error)

// Environment carries the model file hooks consulted by a runtime. A hook
// registered for a model name answers requests for that model; the default
// hook answers the rest. The zero value has no hooks and serves nothing.
type Environment struct {
	mu     sync.RWMutex
	hook   ModelFileFunc
	models map[string]ModelFileFunc
}

// NewEnvironment creates an Environment without a hook.
func NewEnvironment() *Environment {
	return &Environment{}
}

// SetModelFileHook installs fn, replacing any previous hook. A nil fn
// removes it.
func (e *Environment) SetModelFileHook(fn ModelFileFunc) {
	e.mu.Lock()
	e.hook = fn
	e.mu.Unlock()
}

// SetModelHook installs fn for modelName only, replacing any previous hook
// for that model. A nil fn removes it. Other models are unaffected.
func (e *Environment) SetModelHook(modelName string, fn ModelFileFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.models, modelName)
		return
	}
	if e.models == nil {
		e.models = make(map[string]ModelFileFunc)
	}
	e.models[modelName] = fn
}

// HasModelFileHook reports whether any hook is installed.
func (e *Environment) HasModelFileHook() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hook != nil || len(e.models) > 0
}

// GetModelFile consults the hook registered for modelName, falling back to
// the default hook.
func (e *Environment) GetModelFile(ctx context.Context, modelName, filePath string) ([]byte, bool, error) {
	e.mu.RLock()
	hook, ok := e.models[modelName]
	if !ok {
		hook = e.hook
	}
	e.mu.RUnlock()

	if hook == nil {
		return nil, false, nil
	}
	return hook(ctx, modelName, filePath)
}

// FetchModelFile is GetModelFile for runtimes without a fallback source: a
// declined file is ErrModelFileNotFound.
func (e *Environment) FetchModelFile(ctx context.Context, modelName, filePath string) ([]byte, error) {
	data, ok, err := e.GetModelFile(ctx, modelName, filePath)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", modelName, filePath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrModelFileNotFound, modelName, filePath)
	}
	return data, nil
}

// ModelPath is the path a constructor is given for modelName.
func ModelPath(modelName string) string {
	return "/" + modelName
}

// ModelName recovers the model name from a constructor's modelPath.
func ModelName(modelPath string) string {
	return strings.TrimPrefix(modelPath, "/")
}
