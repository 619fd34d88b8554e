package keyderive

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	k1, err := Derive("pw", "s")
	require.NoError(t, err)
	k2, err := Derive("pw", "s")
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
}

func TestDerive_SaltChangesKey(t *testing.T) {
	k1, err := Derive("pw", "salt-a")
	require.NoError(t, err)
	k2, err := Derive("pw", "salt-b")
	require.NoError(t, err)

	assert.NotEqual(t, hex.EncodeToString(k1), hex.EncodeToString(k2))
}

func TestDerive_PasswordChangesKey(t *testing.T) {
	k1, err := Derive("pw-a", "s")
	require.NoError(t, err)
	k2, err := Derive("pw-b", "s")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestDerive_RejectsEmptyInput(t *testing.T) {
	_, err := Derive("", "s")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = Derive("pw", "")
	assert.ErrorIs(t, err, ErrEmptySalt)
}
