package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_NoHook(t *testing.T) {
	env := NewEnvironment()
	assert.False(t, env.HasModelFileHook())

	data, ok, err := env.GetModelFile(context.Background(), "m", "config.json")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	_, err = env.FetchModelFile(context.Background(), "m", "config.json")
	assert.ErrorIs(t, err, ErrModelFileNotFound)
}

func TestEnvironment_Hook(t *testing.T) {
	env := &Environment{}
	env.SetModelFileHook(func(_ context.Context, model, file string) ([]byte, bool, error) {
		if model == "m" && file == "config.json" {
			return []byte(`{"a":1}`), true, nil
		}
		return nil, false, nil
	})
	require.True(t, env.HasModelFileHook())

	data, err := env.FetchModelFile(context.Background(), "m", "config.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	_, ok, err := env.GetModelFile(context.Background(), "m", "other.json")
	assert.NoError(t, err)
	assert.False(t, ok)

	env.SetModelFileHook(nil)
	assert.False(t, env.HasModelFileHook())
}

func TestEnvironment_ModelHooks(t *testing.T) {
	serve := func(body string) ModelFileFunc {
		return func(context.Context, string, string) ([]byte, bool, error) {
			return []byte(body), true, nil
		}
	}

	env := NewEnvironment()
	env.SetModelHook("a", serve("from a"))
	env.SetModelHook("b", serve("from b"))
	require.True(t, env.HasModelFileHook())

	data, err := env.FetchModelFile(context.Background(), "a", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, "from a", string(data))

	data, err = env.FetchModelFile(context.Background(), "b", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, "from b", string(data))

	// Unregistered models go to the default hook.
	_, err = env.FetchModelFile(context.Background(), "c", "weights.onnx")
	assert.ErrorIs(t, err, ErrModelFileNotFound)
	env.SetModelFileHook(serve("default"))
	data, err = env.FetchModelFile(context.Background(), "c", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, "default", string(data))

	env.SetModelHook("a", nil)
	data, err = env.FetchModelFile(context.Background(), "a", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, "default", string(data))
}

func TestEnvironment_HookError(t *testing.T) {
	boom := errors.New("boom")
	env := NewEnvironment()
	env.SetModelFileHook(func(context.Context, string, string) ([]byte, bool, error) {
		return nil, false, boom
	})

	_, err := env.FetchModelFile(context.Background(), "m", "x")
	assert.ErrorIs(t, err, boom)
}

func TestModelPath(t *testing.T) {
	assert.Equal(t, "/bert", ModelPath("bert"))
	assert.Equal(t, "org/bert", ModelName(ModelPath("org/bert")))
}
