package xconf

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeFile(t, "engine.yaml", "a: 1\n")
	l, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan error, 8)
	w, err := Watch(l, func(_ *Loader, err error) {
		reloaded <- err
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
	assert.Equal(t, 2, l.Koanf().Int("a"))
}

func TestWatch_RejectsBytesLoader(t *testing.T) {
	l, err := LoadBytes([]byte("a: 1"), FormatYAML)
	require.NoError(t, err)

	_, err = Watch(l, nil)
	assert.ErrorIs(t, err, ErrBytesSource)
}

func TestWatch_NilLoader(t *testing.T) {
	_, err := Watch(nil, nil)
	assert.Error(t, err)
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeFile(t, "engine.yaml", "a: 1\n")
	l, err := Load(path)
	require.NoError(t, err)

	w, err := Watch(l, nil)
	require.NoError(t, err)
	w.StartAsync()

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatch_NoCallbackAfterStop(t *testing.T) {
	path := writeFile(t, "engine.yaml", "a: 1\n")
	l, err := Load(path)
	require.NoError(t, err)

	var calls atomic.Int32
	w, err := Watch(l, func(_ *Loader, _ error) {
		calls.Add(1)
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()

	// 变更进入防抖窗口后立即 Stop,回调不应再触发
	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, w.Stop())
	time.Sleep(150 * time.Millisecond)

	assert.Zero(t, calls.Load())
}

func TestWatch_StartTwiceIsNoop(t *testing.T) {
	path := writeFile(t, "engine.yaml", "a: 1\n")
	l, err := Load(path)
	require.NoError(t, err)

	w, err := Watch(l, nil)
	require.NoError(t, err)
	w.StartAsync()
	w.StartAsync()
	require.NoError(t, w.Stop())
}
