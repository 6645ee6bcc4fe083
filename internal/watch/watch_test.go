package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/explorer"
)

type fakeRefresher struct {
	calls atomic.Int32
	last  atomic.Value
}

func (f *fakeRefresher) Refresh(_ context.Context, trigger explorer.Trigger) error {
	f.calls.Add(1)
	f.last.Store(trigger)
	return explorer.ErrUnauthenticated
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/dl/Course/.vscode"))
	assert.True(t, ignored("/dl/Course/.vscode/settings.json"))
	assert.False(t, ignored("/dl/Course/Demo1/main.py"))
}

func TestDebouncedRefresh(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Course", "Demo1"), 0o755))

	ref := &fakeRefresher{}
	w, err := New(root, 50*time.Millisecond, ref)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		w.Notify()
	}
	require.Eventually(t, func() bool { return ref.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, explorer.TriggerAuto, ref.last.Load())

	require.NoError(t, os.WriteFile(filepath.Join(root, "Course", "Demo1", "main.py"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return ref.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestIgnoresVSCodeChanges(t *testing.T) {
	root := t.TempDir()
	vscode := filepath.Join(root, "Course", ".vscode")
	require.NoError(t, os.MkdirAll(vscode, 0o755))

	ref := &fakeRefresher{}
	w, err := New(root, 20*time.Millisecond, ref)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(vscode, "settings.json"), []byte("{}"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, ref.calls.Load())
}

func TestStartMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), 0, &fakeRefresher{})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
