// Package keyderive turns a password and salt into the AES-256 key used by
// model containers.
//
// Derivation uses scrypt with fixed cost parameters so that encrypting and
// loading processes arrive at the same key for the same inputs.
package keyderive

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// Cost parameters. Changing any of these makes existing containers
// undecryptable.
const (
	// N is the scrypt CPU/memory cost (2^14).
	N = 16384
	// R is the scrypt block size.
	R = 8
	// P is the scrypt parallelization factor.
	P = 1
	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32
)

var (
	// ErrEmptyPassword indicates an empty password was supplied.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrEmptySalt indicates an empty salt was supplied.
	ErrEmptySalt = errors.New("salt cannot be empty")

	// ErrDerivation indicates the underlying KDF failed.
	ErrDerivation = errors.New("key derivation failed")
)

// Derive returns the 32-byte key for password and salt.
func Derive(password, salt string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if salt == "" {
		return nil, ErrEmptySalt
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), N, R, P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	return key, nil
}
