// Package pathmap decides, for every file of an encrypted model directory,
// where the ciphertext is read from and where its plaintext lands in the
// virtual store.
package pathmap

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/modelvault/internal/container"
)

// Request describes one file found in an encrypted model directory.
type Request struct {
	ModelName    string
	EncryptedDir string
	FilePath     string // relative to EncryptedDir, slash separated
}

// Decision is the result of a Policy: Excluded or Mapped.
type Decision interface {
	decision()
}

// Excluded skips the file.
type Excluded struct{}

func (Excluded) decision() {}

// Mapped pairs the on-disk ciphertext path with the store-relative plaintext
// path.
type Mapped struct {
	EnPath string
	DePath string
}

func (Mapped) decision() {}

// Complete reports whether both paths are set. Incomplete mappings are
// treated as excluded.
func (m Mapped) Complete() bool {
	return m.EnPath != "" && m.DePath != ""
}

// Policy maps one file to a Decision.
type Policy func(Request) Decision

// Default reads EncryptedDir/FilePath and stores it under
// ModelName/FilePath with one trailing ".enc" removed.
func Default(req Request) Decision {
	return Mapped{
		EnPath: filepath.Join(req.EncryptedDir, filepath.FromSlash(req.FilePath)),
		DePath: path.Join(req.ModelName, strings.TrimSuffix(req.FilePath, container.Extension)),
	}
}

// Map applies policy (Default when nil) to every file and returns the
// complete mappings in input order.
func Map(files []string, modelName, encryptedDir string, policy Policy) []Mapped {
	if policy == nil {
		policy = Default
	}

	out := make([]Mapped, 0, len(files))
	for _, f := range files {
		d := policy(Request{ModelName: modelName, EncryptedDir: encryptedDir, FilePath: f})
		switch m := d.(type) {
		case Mapped:
			if m.Complete() {
				out = append(out, m)
			}
		case *Mapped:
			if m != nil && m.Complete() {
				out = append(out, *m)
			}
		}
	}
	return out
}

// ExcludeSuffix excludes files whose path ends in any of suffixes and maps
// the rest with Default.
func ExcludeSuffix(suffixes ...string) Policy {
	return func(req Request) Decision {
		for _, s := range suffixes {
			if strings.HasSuffix(req.FilePath, s) {
				return Excluded{}
			}
		}
		return Default(req)
	}
}

// Relocate maps with Default and then places the plaintext under prefix.
func Relocate(prefix string) Policy {
	return func(req Request) Decision {
		m := Default(req).(Mapped)
		m.DePath = path.Join(prefix, m.DePath)
		return m
	}
}
