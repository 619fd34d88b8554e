// Package container implements the on-disk layout of one encrypted model
// file.
//
// A container is IV(12) || AuthTag(16) || Ciphertext, sealed with
// AES-256-GCM. The ciphertext has the same length as the plaintext, so
// len(container) == Overhead + len(plaintext).
package container

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Layout constants.
const (
	IVSize   = 12
	TagSize  = 16
	KeySize  = 32
	Overhead = IVSize + TagSize

	// Extension is appended to the original relative path of each container.
	Extension = ".enc"
)

var (
	// ErrInvalidKey indicates a key that is not 32 bytes long.
	ErrInvalidKey = errors.New("container key must be 32 bytes")

	// ErrTruncated indicates data too short to hold IV and tag.
	ErrTruncated = errors.New("container truncated")

	// ErrIntegrity indicates the authentication tag did not verify.
	// The container was tampered with or the key is wrong.
	ErrIntegrity = errors.New("container integrity check failed")
)

// Seal encrypts plaintext under key with a fresh random IV.
func Seal(key, plaintext []byte) ([]byte, error) {
	return sealWith(rand.Reader, key, plaintext)
}

func sealWith(random io.Reader, key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, Overhead+len(plaintext))
	iv := out[:IVSize]
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	// GCM appends the tag after the ciphertext; move it in front.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(plaintext)], sealed[len(plaintext):]
	copy(out[IVSize:Overhead], tag)
	copy(out[Overhead:], ct)
	return out, nil
}

// Open authenticates and decrypts a container. On any failure no plaintext
// is returned.
func Open(key, data []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}

	iv := data[:IVSize]
	tag := data[IVSize:Overhead]
	ct := data[Overhead:]

	buf := make([]byte, 0, len(ct)+TagSize)
	buf = append(buf, ct...)
	buf = append(buf, tag...)

	plaintext, err := aead.Open(buf[:0], iv, buf, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return aead, nil
}
