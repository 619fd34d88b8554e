package container

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(t)

	payloads := map[string][]byte{
		"empty":   {},
		"json":    []byte(`{"a":1}`),
		"weights": {0, 1, 2, 3},
		"large":   bytes.Repeat([]byte{0xAB}, 1<<20+7),
	}

	for name, plaintext := range payloads {
		t.Run(name, func(t *testing.T) {
			sealed, err := Seal(key, plaintext)
			require.NoError(t, err)
			assert.Len(t, sealed, Overhead+len(plaintext))

			opened, err := Open(key, sealed)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(plaintext, opened))
		})
	}
}

func TestSeal_FreshIVPerCall(t *testing.T) {
	key := testKey(t)
	a, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:IVSize], b[:IVSize])
	assert.NotEqual(t, a, b)
}

func TestSeal_Layout(t *testing.T) {
	key := testKey(t)
	iv := bytes.Repeat([]byte{7}, IVSize)

	sealed, err := sealWith(bytes.NewReader(iv), key, []byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, iv, sealed[:IVSize])

	// The tag lives at [12:28]; rebuilding GCM's native ct||tag form must open.
	aead, err := newGCM(key)
	require.NoError(t, err)
	native := append(append([]byte{}, sealed[Overhead:]...), sealed[IVSize:Overhead]...)
	plain, err := aead.Open(nil, iv, native, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestOpen_TamperDetection(t *testing.T) {
	key := testKey(t)
	plaintext := []byte(`{"a":1}`)
	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)

	// Flip every bit of the tag and ciphertext, one at a time.
	for i := IVSize; i < len(sealed); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte{}, sealed...)
			tampered[i] ^= 1 << bit

			out, err := Open(key, tampered)
			require.ErrorIs(t, err, ErrIntegrity, "byte %d bit %d", i, bit)
			require.Nil(t, out)
		}
	}
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := Seal(testKey(t), []byte("secret"))
	require.NoError(t, err)

	out, err := Open(testKey(t), sealed)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, out)
}

func TestOpen_Truncated(t *testing.T) {
	_, err := Open(testKey(t), make([]byte, Overhead-1))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestInvalidKey(t *testing.T) {
	_, err := Seal(make([]byte, 16), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Open(nil, make([]byte, Overhead))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
