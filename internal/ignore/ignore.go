// Package ignore enumerates the files of a model directory, skipping
// version-control and dependency subtrees plus anything listed in a
// gitignore-style ignore file at the directory root.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFile is read from the root of a listed directory when present.
const IgnoreFile = ".modelvaultignore"

// DefaultExcludes are always applied.
var DefaultExcludes = []string{".git/", "node_modules/"}

// ErrNotDirectory indicates the listing root is missing or not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are always included, ahead of file patterns.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// ParseRoot reads all ignore files found in root and returns the combined,
// deduplicated patterns.
func (p *Parser) ParseRoot(root string) ([]string, error) {
	patterns := append([]string(nil), p.FallbackPatterns...)

	for _, name := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
	}

	return deduplicate(patterns), nil
}

// parseFile reads a single gitignore-style file and returns patterns.
func parseFile(name string) ([]string, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine returns the pattern on a line, or empty string for comments,
// blank lines and negations (unsupported).
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return line
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}

// rule is a compiled ignore pattern.
//
//   - a trailing "/" restricts the rule to directories
//   - a leading "**/" or no "/" at all matches the base name at any depth
//   - otherwise the glob is anchored to the root
type rule struct {
	glob     string
	dirOnly  bool
	anchored bool
}

func compile(pattern string) (rule, error) {
	r := rule{}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	pattern = strings.TrimPrefix(pattern, "**/")
	if strings.Contains(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	if _, err := path.Match(pattern, "test"); err != nil {
		return rule{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	r.glob = pattern
	return r, nil
}

func (r rule) match(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	target := path.Base(rel)
	if r.anchored {
		target = rel
	}
	ok, _ := path.Match(r.glob, target)
	return ok
}

// Lister enumerates files under a root directory.
type Lister struct {
	parser *Parser
}

// NewLister returns a Lister applying DefaultExcludes, the IgnoreFile at the
// root, and any extra patterns.
func NewLister(extra ...string) *Lister {
	fallback := append(append([]string(nil), DefaultExcludes...), extra...)
	return &Lister{parser: NewParser([]string{IgnoreFile}, fallback)}
}

// List returns the slash-separated paths of all regular files under root,
// relative to root, in lexical order. The ignore file itself is never listed.
func (l *Lister) List(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotDirectory, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	patterns, err := l.parser.ParseRoot(root)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		r, err := compile(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		for _, r := range rules {
			if r.match(rel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.Type().IsRegular() && rel != IgnoreFile {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
