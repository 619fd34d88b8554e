// Package vfs is the in-memory virtual filesystem decrypted model files are
// written to. Nothing in a Store ever touches persistent storage.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Root is the directory every Store path lives under.
const Root = "/virtual"

var (
	// ErrNotFound is returned when no entry exists at a path.
	ErrNotFound = errors.New("vfs: entry not found")

	// ErrInvalidPath is returned for an empty path or one naming the root.
	ErrInvalidPath = errors.New("vfs: invalid path")
)

// Store maps virtual paths to Content. It is safe for concurrent use; every
// Store is independent of every other.
type Store struct {
	mu    sync.RWMutex
	fs    afero.Fs
	kinds map[string]kind // keyed by full virtual path
	size  int64

	entries prometheus.Gauge
	bytes   prometheus.Gauge
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	fs         afero.Fs
	registerer prometheus.Registerer
	labels     prometheus.Labels
}

// WithFs backs the store with fs instead of a fresh afero.MemMapFs.
func WithFs(fs afero.Fs) Option {
	return func(o *storeOptions) { o.fs = fs }
}

// WithRegisterer registers the store's gauges with reg. labels distinguish
// stores sharing a registry.
func WithRegisterer(reg prometheus.Registerer, labels prometheus.Labels) Option {
	return func(o *storeOptions) {
		o.registerer = reg
		o.labels = labels
	}
}

// New creates an empty Store.
func New(opts ...Option) (*Store, error) {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewMemMapFs()
	}

	s := &Store{
		fs:    o.fs,
		kinds: make(map[string]kind),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "modelvault",
			Subsystem:   "vfs",
			Name:        "entries",
			Help:        "Number of files held in the virtual store",
			ConstLabels: o.labels,
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "modelvault",
			Subsystem:   "vfs",
			Name:        "bytes",
			Help:        "Total plaintext bytes held in the virtual store",
			ConstLabels: o.labels,
		}),
	}

	if err := s.fs.MkdirAll(Root, 0o700); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}

	if o.registerer != nil {
		for _, c := range []prometheus.Collector{s.entries, s.bytes} {
			if err := o.registerer.Register(c); err != nil {
				return nil, fmt.Errorf("registering store metrics: %w", err)
			}
		}
	}

	return s, nil
}

// resolve returns the full virtual path for p. p may be relative to Root or
// already carry the Root prefix.
func resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(p, Root+"/"))
	if clean == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return Root + clean, nil
}

// Write stores c at p, creating parent directories and replacing any
// existing entry. It returns the full virtual path.
func (s *Store) Write(p string, c Content) (string, error) {
	if c == nil {
		return "", fmt.Errorf("writing %s: nil content", p)
	}
	full, err := resolve(p)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(path.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("creating parents of %s: %w", full, err)
	}

	var prev int64
	_, existed := s.kinds[full]
	if existed {
		if info, err := s.fs.Stat(full); err == nil {
			prev = info.Size()
		}
	}

	if err := afero.WriteFile(s.fs, full, c.Data(), 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", full, err)
	}

	s.kinds[full] = kindOf(c)
	s.size += int64(c.Len()) - prev
	if !existed {
		s.entries.Inc()
	}
	s.bytes.Set(float64(s.size))

	return full, nil
}

// Read returns the entry at p in the representation it was written with.
func (s *Store) Read(p string) (Content, error) {
	full, err := resolve(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(full)
}

func (s *Store) readLocked(full string) (Content, error) {
	k, ok := s.kinds[full]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, full)
	}
	data, err := afero.ReadFile(s.fs, full)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", full, err)
	}
	if k == kindText {
		return Text(data), nil
	}
	return Bytes(data), nil
}

// Stat returns file info for p, which may name a file or a directory.
func (s *Store) Stat(p string) (os.FileInfo, error) {
	full, err := resolve(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.fs.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, full)
	}
	return info, err
}

// Exists reports whether a file entry is stored at p.
func (s *Store) Exists(p string) bool {
	full, err := resolve(p)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kinds[full]
	return ok
}

// WalkFunc is called for each entry with its path relative to Root.
type WalkFunc func(rel string, c Content) error

// Walk calls fn for every entry in lexical path order. The entries are
// snapshotted first, so fn may write to the store.
func (s *Store) Walk(fn WalkFunc) error {
	type entry struct {
		rel string
		c   Content
	}

	s.mu.RLock()
	paths := make([]string, 0, len(s.kinds))
	for full := range s.kinds {
		paths = append(paths, full)
	}
	sort.Strings(paths)

	entries := make([]entry, 0, len(paths))
	for _, full := range paths {
		c, err := s.readLocked(full)
		if err != nil {
			s.mu.RUnlock()
			return err
		}
		entries = append(entries, entry{rel: strings.TrimPrefix(full, Root+"/"), c: c})
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e.rel, e.c); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kinds)
}

// Size returns the total number of stored bytes.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// ReadOnlyFs exposes the store contents as a read-only afero.Fs rooted at
// Root.
func (s *Store) ReadOnlyFs() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(s.fs, Root))
}
