// Package decryptmodel ties the pieces together: it derives the key, loads
// an encrypted model directory into a virtual store once, installs the
// content negotiator on the host environment and hands out pipelines.
package decryptmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/modelvault/internal/host"
	"github.com/fyrsmithlabs/modelvault/internal/ignore"
	"github.com/fyrsmithlabs/modelvault/internal/keyderive"
	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
	"github.com/fyrsmithlabs/modelvault/internal/pathmap"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoConstructor is returned by Factory.New when no host constructor was
// configured.
var ErrNoConstructor = errors.New("no host constructor configured")

// EncryptOptions holds the secrets the model key is derived from.
type EncryptOptions struct {
	Password string
	Salt     string
}

// Factory builds handlers for a loaded model.
type Factory struct {
	modelName   string
	env         *host.Environment
	constructor host.Constructor
}

// ModelPath is the virtual path handed to the constructor.
func (f *Factory) ModelPath() string {
	return host.ModelPath(f.modelName)
}

// New builds a handler for task.
func (f *Factory) New(ctx context.Context, task string, opts host.Options) (host.Handler, error) {
	if f.constructor == nil {
		return nil, ErrNoConstructor
	}
	h, err := f.constructor(ctx, f.env, task, f.ModelPath(), opts)
	if err != nil {
		return nil, fmt.Errorf("building %s pipeline for %s: %w", task, f.modelName, err)
	}
	return h, nil
}

// Model is an encrypted model bound to its directory, name and key.
type Model struct {
	encryptedDir string
	modelName    string
	key          []byte
	opts         options
	negotiator   *negotiate.Negotiator

	group   singleflight.Group
	mu      sync.Mutex
	factory *Factory
}

// Use derives the key and prepares the model. Nothing is read from disk
// until the first Pipeline call.
func Use(encryptedDir, modelName string, eo EncryptOptions, opts ...Option) (*Model, error) {
	key, err := keyderive.Derive(eo.Password, eo.Salt)
	if err != nil {
		return nil, err
	}

	o := options{filter: negotiate.DefaultFilter()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		if o.store, err = vfs.New(); err != nil {
			return nil, err
		}
	}
	if o.env == nil {
		o.env = host.NewEnvironment()
	}
	if o.lister == nil {
		o.lister = ignore.NewLister()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Model{
		encryptedDir: encryptedDir,
		modelName:    modelName,
		key:          key,
		opts:         o,
		negotiator:   negotiate.New(o.store, o.filter),
	}, nil
}

// Store returns the store the model is decrypted into.
func (m *Model) Store() *vfs.Store { return m.opts.store }

// Environment returns the environment the negotiator is installed on.
func (m *Model) Environment() *host.Environment { return m.opts.env }

// Negotiator returns the model's content negotiator.
func (m *Model) Negotiator() *negotiate.Negotiator { return m.negotiator }

// Pipeline loads the model on first use and returns its Factory. Concurrent
// first callers share one load, which runs detached from any single
// caller's cancellation; each caller stops waiting when its own ctx is done.
// A successful load is cached for the life of the Model; a failed one is
// not, so the next call retries.
func (m *Model) Pipeline(ctx context.Context) (*Factory, error) {
	if f := m.cached(); f != nil {
		return f, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan("load", func() (any, error) {
		if f := m.cached(); f != nil {
			return f, nil
		}
		f, err := m.load(loadCtx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.factory = f
		m.mu.Unlock()
		return f, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Factory), nil
	}
}

func (m *Model) cached() *Factory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factory
}

func (m *Model) load(ctx context.Context) (*Factory, error) {
	loadID := logging.NewLoadID()
	logger := m.opts.logger.With(zap.String("model.name", m.modelName), zap.String("load.id", loadID))

	files, err := m.opts.lister.List(m.encryptedDir)
	if err != nil {
		logger.Error("listing encrypted model failed", zap.String("dir", m.encryptedDir), zap.Error(err))
		return nil, fmt.Errorf("listing %s: %w", m.encryptedDir, err)
	}

	mappings := pathmap.Map(files, m.modelName, m.encryptedDir, m.opts.policy)
	logger.Info("loading encrypted model",
		zap.String("dir", m.encryptedDir),
		zap.Int("files", len(files)),
		zap.Int("mapped", len(mappings)),
	)

	l, err := loader.New(m.key, m.opts.store, append([]loader.Option{loader.WithLogger(logger)}, m.opts.loaderOpts...)...)
	if err != nil {
		return nil, err
	}
	if err := l.LoadAll(ctx, mappings); err != nil {
		return nil, fmt.Errorf("loading %s: %w", m.modelName, err)
	}

	m.negotiator.InstallModel(m.opts.env, m.modelName)

	return &Factory{
		modelName:   m.modelName,
		env:         m.opts.env,
		constructor: m.opts.constructor,
	}, nil
}

// Task builds a handler for task, loading the model first if needed.
func (m *Model) Task(ctx context.Context, task string, opts host.Options) (host.Handler, error) {
	f, err := m.Pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return f.New(ctx, task, opts)
}
