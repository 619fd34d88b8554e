// Package encryptor seals every file of a plaintext model directory into a
// mirrored directory of containers.
package encryptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/modelvault/internal/container"
	"github.com/fyrsmithlabs/modelvault/internal/ignore"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files encrypted per batch.
const DefaultConcurrency = 4

// ErrInvalidSource indicates the plaintext directory is missing or not a
// directory.
var ErrInvalidSource = errors.New("invalid source directory")

// Lister enumerates the files under root as slash separated relative paths.
type Lister interface {
	List(root string) ([]string, error)
}

// Failure is one file that could not be encrypted.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes one EncryptDir run.
type Result struct {
	Files     int // discovered
	Encrypted int
	Failed    int
	Failures  []Failure
	DestDir   string
}

// Encryptor seals directories under a fixed key.
type Encryptor struct {
	key         []byte
	concurrency int
	lister      Lister
	logger      *zap.Logger
	meter       metric.Meter
	metrics     *Metrics

	readFile func(name string) ([]byte, error)
}

// Option configures an Encryptor.
type Option func(*Encryptor)

// WithConcurrency sets the batch size. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Encryptor) {
		if n >= 1 {
			e.concurrency = n
		}
	}
}

// WithLister replaces the default ignore-aware directory lister.
func WithLister(l Lister) Option {
	return func(e *Encryptor) { e.lister = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Encryptor) { e.logger = l }
}

// WithMeter records metrics on meter instead of the global provider.
func WithMeter(m metric.Meter) Option {
	return func(e *Encryptor) { e.meter = m }
}

// New creates an Encryptor for a 32-byte key.
func New(key []byte, opts ...Option) (*Encryptor, error) {
	if len(key) != container.KeySize {
		return nil, container.ErrInvalidKey
	}

	e := &Encryptor{
		key:         key,
		concurrency: DefaultConcurrency,
		readFile:    os.ReadFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lister == nil {
		e.lister = ignore.NewLister()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.metrics = NewMetrics(e.meter, e.logger)
	return e, nil
}

// EncryptDir writes destDir/<rel>.enc for every file under plainDir.
//
// Files are processed in batches; a batch starts only after the previous
// one has settled. A file that fails is logged and counted, and never stops
// the run. Cancelling ctx stops before the next batch.
func (e *Encryptor) EncryptDir(ctx context.Context, plainDir, destDir string) (*Result, error) {
	info, err := os.Stat(plainDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, plainDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, plainDir)
	}

	files, err := e.lister.List(plainDir)
	if err != nil {
		if errors.Is(err, ignore.ErrNotDirectory) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		return nil, fmt.Errorf("listing %s: %w", plainDir, err)
	}
	files = skipDest(files, plainDir, destDir)

	result := &Result{Files: len(files), DestDir: destDir}
	if len(files) == 0 {
		e.logger.Warn("no files found to encrypt", zap.String("dir", plainDir))
		return result, nil
	}

	e.logger.Info("encrypting model directory",
		zap.String("source", plainDir),
		zap.String("dest", destDir),
		zap.Int("files", len(files)),
		zap.Int("concurrency", e.concurrency),
	)

	errs := make([]error, e.concurrency)
	for start := 0; start < len(files); start += e.concurrency {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// A plain Group: one file's failure never cancels its siblings.
		batch := files[start:min(start+e.concurrency, len(files))]
		var g errgroup.Group
		for i, rel := range batch {
			g.Go(func() error {
				errs[i] = e.encryptFile(ctx, plainDir, destDir, rel)
				return nil
			})
		}
		_ = g.Wait()

		for i, rel := range batch {
			if errs[i] != nil {
				e.logger.Error("failed to encrypt file", zap.String("path", rel), zap.Error(errs[i]))
				result.Failed++
				result.Failures = append(result.Failures, Failure{Path: rel, Err: errs[i]})
				continue
			}
			e.logger.Debug("encrypted file", zap.String("path", rel))
			result.Encrypted++
		}
	}

	e.logger.Info("encryption complete",
		zap.Int("total", result.Files),
		zap.Int("encrypted", result.Encrypted),
		zap.Int("failed", result.Failed),
		zap.String("dest", destDir),
	)
	return result, nil
}

func (e *Encryptor) encryptFile(ctx context.Context, plainDir, destDir, rel string) (err error) {
	start := time.Now()
	size := 0
	defer func() { e.metrics.RecordFile(ctx, time.Since(start), size, err) }()

	plaintext, err := e.readFile(filepath.Join(plainDir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	size = len(plaintext)

	sealed, err := container.Seal(e.key, plaintext)
	if err != nil {
		return fmt.Errorf("sealing: %w", err)
	}

	dst := filepath.Join(destDir, filepath.FromSlash(rel)+container.Extension)
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, sealed, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// skipDest drops files that live under destDir when destDir is nested in
// plainDir, so a rerun never encrypts its own output.
func skipDest(files []string, plainDir, destDir string) []string {
	absPlain, err1 := filepath.Abs(plainDir)
	absDest, err2 := filepath.Abs(destDir)
	if err1 != nil || err2 != nil {
		return files
	}
	rel, err := filepath.Rel(absPlain, absDest)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return files
	}

	prefix := filepath.ToSlash(rel) + "/"
	out := files[:0:0]
	for _, f := range files {
		if !strings.HasPrefix(f, prefix) {
			out = append(out, f)
		}
	}
	return out
}
