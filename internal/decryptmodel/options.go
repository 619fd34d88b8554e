package decryptmodel

import (
	"github.com/fyrsmithlabs/modelvault/internal/host"
	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
	"github.com/fyrsmithlabs/modelvault/internal/pathmap"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
	"go.uber.org/zap"
)

// Lister enumerates the files of the encrypted directory as slash separated
// relative paths.
type Lister interface {
	List(root string) ([]string, error)
}

type options struct {
	policy      pathmap.Policy
	store       *vfs.Store
	env         *host.Environment
	constructor host.Constructor
	filter      negotiate.ModelFileFilter
	loaderOpts  []loader.Option
	logger      *zap.Logger
	lister      Lister
}

// Option configures Use.
type Option func(*options)

// WithPolicy maps encrypted files to store paths. Default is pathmap.Default.
func WithPolicy(p pathmap.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithStore decrypts into s instead of a fresh store.
func WithStore(s *vfs.Store) Option {
	return func(o *options) { o.store = s }
}

// WithEnvironment installs the negotiator on env instead of a fresh
// Environment. The hook is registered for this model's name only, so
// several models can share one env with separate stores.
func WithEnvironment(env *host.Environment) Option {
	return func(o *options) { o.env = env }
}

// WithConstructor sets the runtime that builds handlers.
func WithConstructor(c host.Constructor) Option {
	return func(o *options) { o.constructor = c }
}

// WithFilter sets the negotiator's file filter.
func WithFilter(f negotiate.ModelFileFilter) Option {
	return func(o *options) { o.filter = f }
}

// WithLoaderOptions passes options to the loader.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(o *options) { o.loaderOpts = append(o.loaderOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLister replaces the directory lister.
func WithLister(l Lister) Option {
	return func(o *options) { o.lister = l }
}
