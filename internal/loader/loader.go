// Package loader decrypts containers from disk straight into a virtual
// store. Plaintext only ever exists in memory.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/modelvault/internal/container"
	"github.com/fyrsmithlabs/modelvault/internal/pathmap"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight decrypts during LoadAll.
const DefaultConcurrency = 4

// DefaultTextExtensions are stored as vfs.Text; everything else as vfs.Bytes.
var DefaultTextExtensions = []string{".json", ".txt", ".md", ".py", ".js", ".ts"}

// ErrInvalidText indicates a file with a text extension whose plaintext is
// not valid UTF-8.
var ErrInvalidText = errors.New("decrypted text is not valid UTF-8")

// Store receives decrypted files.
type Store interface {
	Write(p string, c vfs.Content) (string, error)
}

// Loader decrypts containers under one key.
type Loader struct {
	key         []byte
	store       Store
	textExts    map[string]bool
	concurrency int
	logger      *zap.Logger
	tracer      trace.Tracer
}

// Option configures a Loader.
type Option func(*Loader)

// WithConcurrency bounds parallel decrypts. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n >= 1 {
			l.concurrency = n
		}
	}
}

// WithTextExtensions replaces the set of extensions stored as text.
// Extensions are matched case-insensitively.
func WithTextExtensions(exts ...string) Option {
	return func(l *Loader) {
		l.textExts = extSet(exts)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) { l.tracer = t }
}

// New creates a Loader writing into store.
func New(key []byte, store Store, opts ...Option) (*Loader, error) {
	if len(key) != container.KeySize {
		return nil, container.ErrInvalidKey
	}
	if store == nil {
		return nil, errors.New("loader: store is required")
	}

	l := &Loader{
		key:         key,
		store:       store,
		textExts:    extSet(DefaultTextExtensions),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.tracer == nil {
		l.tracer = defaultTracer()
	}
	return l, nil
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

// IsText reports whether dePath is stored as text.
func (l *Loader) IsText(dePath string) bool {
	return l.textExts[strings.ToLower(path.Ext(dePath))]
}

// LoadFile decrypts enPath and stores the plaintext at dePath. It returns
// the full virtual path written.
func (l *Loader) LoadFile(ctx context.Context, enPath, dePath string) (string, error) {
	ctx, span := l.tracer.Start(ctx, SpanDecryptFile, trace.WithAttributes(
		attribute.String("file.path", dePath),
	))
	defer span.End()

	full, err := l.loadFile(ctx, enPath, dePath)
	if err != nil {
		recordError(ctx, err)
		return "", err
	}
	return full, nil
}

func (l *Loader) loadFile(ctx context.Context, enPath, dePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(enPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", enPath, err)
	}

	plaintext, err := container.Open(l.key, data)
	if err != nil {
		return "", fmt.Errorf("decrypting %s: %w", enPath, err)
	}

	var content vfs.Content = vfs.Bytes(plaintext)
	kind := "bytes"
	if l.IsText(dePath) {
		if !utf8.Valid(plaintext) {
			return "", fmt.Errorf("decrypting %s: %w", enPath, ErrInvalidText)
		}
		content = vfs.Text(plaintext)
		kind = "text"
	}

	full, err := l.store.Write(dePath, content)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", dePath, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("file.bytes", len(plaintext)),
		attribute.String("file.kind", kind),
	)
	l.logger.Debug("decrypted file",
		zap.String("path", full),
		zap.String("kind", kind),
		zap.Int("bytes", len(plaintext)),
	)
	return full, nil
}

// LoadAll decrypts every mapping with bounded parallelism. The first
// failure cancels the remaining work and is returned; files already stored
// stay in the store.
func (l *Loader) LoadAll(ctx context.Context, mappings []pathmap.Mapped) error {
	ctx, span := l.tracer.Start(ctx, SpanLoad, trace.WithAttributes(
		attribute.Int("files", len(mappings)),
		attribute.Int("concurrency", l.concurrency),
	))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for _, m := range mappings {
		g.Go(func() error {
			_, err := l.LoadFile(gctx, m.EnPath, m.DePath)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		recordError(ctx, err)
		l.logger.Error("model load failed", zap.Error(err))
		return err
	}

	l.logger.Info("model files decrypted", zap.Int("files", len(mappings)))
	return nil
}
