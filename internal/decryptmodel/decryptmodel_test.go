package decryptmodel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/modelvault/internal/container"
	"github.com/fyrsmithlabs/modelvault/internal/encryptor"
	"github.com/fyrsmithlabs/modelvault/internal/host"
	"github.com/fyrsmithlabs/modelvault/internal/ignore"
	"github.com/fyrsmithlabs/modelvault/internal/keyderive"
	"github.com/fyrsmithlabs/modelvault/internal/loader"
	"github.com/fyrsmithlabs/modelvault/internal/logging"
	"github.com/fyrsmithlabs/modelvault/internal/negotiate"
	"github.com/fyrsmithlabs/modelvault/internal/pathmap"
	"github.com/fyrsmithlabs/modelvault/internal/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var creds = EncryptOptions{Password: "pw", Salt: "s"}

// encryptedModel encrypts config.json {"a":1} and weights.onnx [0,1,2,3]
// under pw/s and returns the encrypted directory.
func encryptedModel(t *testing.T) string {
	t.Helper()
	plain := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(plain, "config.json"), []byte(`{"a":1}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(plain, "weights.onnx"), []byte{0, 1, 2, 3}, 0o600))

	key, err := keyderive.Derive(creds.Password, creds.Salt)
	require.NoError(t, err)
	enc, err := encryptor.New(key)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "enc")
	res, err := enc.EncryptDir(context.Background(), plain, dest)
	require.NoError(t, err)
	require.Equal(t, 2, res.Encrypted)
	return dest
}

// recordingConstructor captures the files a runtime would fetch.
type recordingConstructor struct {
	mu        sync.Mutex
	modelPath string
	files     map[string][]byte
}

func (r *recordingConstructor) construct(ctx context.Context, env *host.Environment, task, modelPath string, _ host.Options) (host.Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelPath = modelPath
	r.files = map[string][]byte{}
	for _, f := range []string{"config.json", "weights.onnx"} {
		data, ok, err := env.GetModelFile(ctx, host.ModelName(modelPath), f)
		if err != nil {
			return nil, err
		}
		if ok {
			r.files[f] = data
		}
	}
	return func(context.Context, any) (any, error) { return task, nil }, nil
}

type countingLister struct {
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
	inner *ignore.Lister
}

func (c *countingLister) List(root string) ([]string, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.fail.Load() {
		return nil, errors.New("listing failed")
	}
	return c.inner.List(root)
}

func TestEndToEnd(t *testing.T) {
	dir := encryptedModel(t)

	for name, size := range map[string]int{"config.json.enc": 7, "weights.onnx.enc": 4} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, int64(container.Overhead+size), info.Size(), name)
	}

	rc := &recordingConstructor{}
	m, err := Use(dir, "m", creds, WithConstructor(rc.construct))
	require.NoError(t, err)

	h, err := m.Task(context.Background(), "feature-extraction", host.Options{})
	require.NoError(t, err)
	out, err := h(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "feature-extraction", out)

	assert.Equal(t, "/m", rc.modelPath)
	assert.Equal(t, []byte{0, 1, 2, 3}, rc.files["weights.onnx"])
	assert.Equal(t, []byte(`{"a":1}`), rc.files["config.json"])

	c, err := m.Store().Read("m/config.json")
	require.NoError(t, err)
	assert.Equal(t, vfs.Text(`{"a":1}`), c)

	c, err = m.Store().Read("m/weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, vfs.Bytes{0, 1, 2, 3}, c)
}

func TestUse_DerivationError(t *testing.T) {
	_, err := Use(t.TempDir(), "m", EncryptOptions{Salt: "s"})
	assert.ErrorIs(t, err, keyderive.ErrEmptyPassword)
}

func TestPipeline_WrongPassword(t *testing.T) {
	dir := encryptedModel(t)

	m, err := Use(dir, "m", EncryptOptions{Password: "nope", Salt: "s"})
	require.NoError(t, err)

	_, err = m.Pipeline(context.Background())
	assert.ErrorIs(t, err, container.ErrIntegrity)
	assert.False(t, m.Environment().HasModelFileHook())
}

func TestPipeline_Cached(t *testing.T) {
	dir := encryptedModel(t)
	lister := &countingLister{inner: ignore.NewLister()}

	m, err := Use(dir, "m", creds, WithLister(lister))
	require.NoError(t, err)

	f1, err := m.Pipeline(context.Background())
	require.NoError(t, err)
	f2, err := m.Pipeline(context.Background())
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Equal(t, "/m", f1.ModelPath())
}

func TestPipeline_ConcurrentFirstCallers(t *testing.T) {
	dir := encryptedModel(t)
	lister := &countingLister{inner: ignore.NewLister(), gate: make(chan struct{})}

	m, err := Use(dir, "m", creds, WithLister(lister))
	require.NoError(t, err)

	const callers = 8
	results := make([]*Factory, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := m.Pipeline(context.Background())
			assert.NoError(t, err)
			results[i] = f
		}(i)
	}

	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(lister.gate)
	wg.Wait()

	for _, f := range results {
		assert.Same(t, results[0], f)
	}
}

func TestPipeline_FailureNotCached(t *testing.T) {
	dir := encryptedModel(t)
	lister := &countingLister{inner: ignore.NewLister()}
	lister.fail.Store(true)

	m, err := Use(dir, "m", creds, WithLister(lister))
	require.NoError(t, err)

	_, err = m.Pipeline(context.Background())
	assert.Error(t, err)

	lister.fail.Store(false)
	f, err := m.Pipeline(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestPipeline_Exclusion(t *testing.T) {
	dir := encryptedModel(t)
	rc := &recordingConstructor{}

	m, err := Use(dir, "m", creds,
		WithConstructor(rc.construct),
		WithPolicy(pathmap.ExcludeSuffix("config.json.enc")),
	)
	require.NoError(t, err)

	_, err = m.Task(context.Background(), "task", host.Options{})
	require.NoError(t, err)

	assert.False(t, m.Store().Exists("m/config.json"))
	assert.NotContains(t, rc.files, "config.json")
	assert.Equal(t, []byte{0, 1, 2, 3}, rc.files["weights.onnx"])
}

func TestPipeline_SharedStoreAndEnvironment(t *testing.T) {
	dir := encryptedModel(t)
	store, err := vfs.New()
	require.NoError(t, err)
	env := host.NewEnvironment()

	m, err := Use(dir, "m", creds,
		WithStore(store),
		WithEnvironment(env),
		WithFilter(negotiate.ModelFileFilter{TextFile: []string{".json"}, BinaryFile: []string{".onnx"}}),
		WithLoaderOptions(loader.WithConcurrency(1)),
	)
	require.NoError(t, err)
	assert.Same(t, store, m.Store())

	_, err = m.Pipeline(context.Background())
	require.NoError(t, err)

	data, err := env.FetchModelFile(context.Background(), "m", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)
	assert.Equal(t, 2, store.Len())
}

func TestTask_NoConstructor(t *testing.T) {
	dir := encryptedModel(t)
	m, err := Use(dir, "m", creds)
	require.NoError(t, err)

	_, err = m.Task(context.Background(), "task", host.Options{})
	assert.ErrorIs(t, err, ErrNoConstructor)
}

func TestTask_ConstructorError(t *testing.T) {
	dir := encryptedModel(t)
	boom := errors.New("boom")
	m, err := Use(dir, "m", creds, WithConstructor(
		func(context.Context, *host.Environment, string, string, host.Options) (host.Handler, error) {
			return nil, boom
		}))
	require.NoError(t, err)

	_, err = m.Task(context.Background(), "task", host.Options{})
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_Logging(t *testing.T) {
	dir := encryptedModel(t)
	tl := logging.NewTestLogger()

	m, err := Use(dir, "m", creds, WithLogger(tl.Underlying()))
	require.NoError(t, err)
	_, err = m.Pipeline(context.Background())
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.InfoLevel, "loading encrypted model")
	tl.AssertField(t, "loading encrypted model", "model.name", "m")
	tl.AssertNoSecrets(t)
}

func TestPipeline_CallerCancelDoesNotFailSharedLoad(t *testing.T) {
	dir := encryptedModel(t)
	lister := &countingLister{inner: ignore.NewLister(), gate: make(chan struct{})}

	m, err := Use(dir, "m", creds, WithLister(lister))
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.Pipeline(cctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := m.Pipeline(context.Background())
		second <- err
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(lister.gate)
	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}

	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Equal(t, 2, m.Store().Len())
}

func TestPipeline_ModelsShareEnvironment(t *testing.T) {
	dirA := encryptedModel(t)
	dirB := encryptedModel(t)
	env := host.NewEnvironment()

	a, err := Use(dirA, "a", creds, WithEnvironment(env))
	require.NoError(t, err)
	b, err := Use(dirB, "b", creds, WithEnvironment(env))
	require.NoError(t, err)
	require.NotSame(t, a.Store(), b.Store())

	_, err = a.Pipeline(context.Background())
	require.NoError(t, err)
	data, err := env.FetchModelFile(context.Background(), "a", "weights.onnx")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)

	_, err = b.Pipeline(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		data, err := env.FetchModelFile(context.Background(), name, "weights.onnx")
		require.NoError(t, err, name)
		assert.Equal(t, []byte{0, 1, 2, 3}, data, name)

		data, err = env.FetchModelFile(context.Background(), name, "config.json")
		require.NoError(t, err, name)
		assert.Equal(t, []byte(`{"a":1}`), data, name)
	}
}
