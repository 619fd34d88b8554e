// Package negotiate answers a runtime's model file requests from the
// virtual store, deciding per extension whether a file is served as binary
// or as text.
package negotiate

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/modelvault/internal/host"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
)

// ModelFileFilter selects which extensions are served. An empty list
// matches every extension.
type ModelFileFilter struct {
	TextFile   []string
	BinaryFile []string
}

// DefaultFilter serves .onnx as binary and everything else as text.
func DefaultFilter() ModelFileFilter {
	return ModelFileFilter{
		TextFile:   []string{},
		BinaryFile: []string{".onnx"},
	}
}

// Reader is the part of the store the negotiator needs.
type Reader interface {
	Read(p string) (vfs.Content, error)
}

// Negotiator serves model files from a store.
type Negotiator struct {
	store Reader

	mu     sync.RWMutex
	filter ModelFileFilter
}

// New creates a Negotiator. Nil lists in filter take their defaults.
func New(store Reader, filter ModelFileFilter) *Negotiator {
	n := &Negotiator{store: store}
	n.SetFilter(filter)
	return n
}

// SetFilter replaces the filter. A nil TextFile resets to no entries (all
// extensions) and a nil BinaryFile resets to {".onnx"}.
func (n *Negotiator) SetFilter(f ModelFileFilter) {
	def := DefaultFilter()
	if f.TextFile == nil {
		f.TextFile = def.TextFile
	}
	if f.BinaryFile == nil {
		f.BinaryFile = def.BinaryFile
	}

	n.mu.Lock()
	n.filter = ModelFileFilter{
		TextFile:   slices.Clone(f.TextFile),
		BinaryFile: slices.Clone(f.BinaryFile),
	}
	n.mu.Unlock()
}

// Filter returns a copy of the current filter.
func (n *Negotiator) Filter() ModelFileFilter {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return ModelFileFilter{
		TextFile:   slices.Clone(n.filter.TextFile),
		BinaryFile: slices.Clone(n.filter.BinaryFile),
	}
}

type rule int

const (
	ruleDecline rule = iota
	ruleBinary
	ruleText
)

func (n *Negotiator) classify(filePath string) rule {
	ext := strings.ToLower(path.Ext(filePath))

	n.mu.RLock()
	defer n.mu.RUnlock()

	switch {
	case matches(n.filter.BinaryFile, ext):
		return ruleBinary
	case matches(n.filter.TextFile, ext):
		return ruleText
	default:
		return ruleDecline
	}
}

func matches(list []string, ext string) bool {
	if len(list) == 0 {
		return true
	}
	return slices.ContainsFunc(list, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

// GetModelFile returns the bytes stored at modelName/filePath. ok is false
// when the extension is not selected by the filter or nothing is stored
// there.
func (n *Negotiator) GetModelFile(ctx context.Context, modelName, filePath string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r := n.classify(filePath)
	if r == ruleDecline {
		return nil, false, nil
	}

	c, err := n.store.Read(path.Join(modelName, filePath))
	if errors.Is(err, vfs.ErrNotFound) || errors.Is(err, vfs.ErrInvalidPath) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// Text entries are served as their UTF-8 bytes; a Bytes entry is
	// returned unchanged under either rule.
	return c.Data(), true, nil
}

// Install sets the negotiator as env's default model file hook.
func (n *Negotiator) Install(env *host.Environment) {
	env.SetModelFileHook(n.GetModelFile)
}

// InstallModel sets the negotiator as env's hook for modelName, leaving the
// hooks of other models in place.
func (n *Negotiator) InstallModel(env *host.Environment, modelName string) {
	env.SetModelHook(modelName, n.GetModelFile)
}
