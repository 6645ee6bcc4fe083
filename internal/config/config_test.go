package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.DownloadPath)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.Watch.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "tide.yaml", `
download_path: /courses
store:
  backend: sqlite
  path: /tmp/tide.db
watch:
  debounce: 2s
`)
	t.Setenv("TIDE_LOG_LEVEL", "debug")

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)

	assert.Equal(t, "/courses", cfg.DownloadPath)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/tide.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, file, cfg.File())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "store:\n  backend: redis\n"},
		{"postgres without url", "store:\n  backend: postgres\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad tim url", "tim:\n  base_url: \"::nope\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeFile(t, t.TempDir(), "tide.yaml", tt.content)
			_, err := Load(NewViper(), file)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCurrentDownloadPathIsLive(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.CurrentDownloadPath())
	require.NoError(t, cfg.Set(KeyDownloadPath, " /new/root "))
	assert.Equal(t, "/new/root", cfg.CurrentDownloadPath())
}

func TestWatchFileUpdatesDownloadPath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "tide.yaml", "download_path: /p0\n")
	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, "/p0", cfg.CurrentDownloadPath())

	cfg.WatchFile(nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = cfg.CurrentDownloadPath()
			}
		}
	}()

	for i := 1; i <= 20; i++ {
		writeFile(t, dir, "tide.yaml", fmt.Sprintf("download_path: /p%d\n", i))
		time.Sleep(5 * time.Millisecond)
	}
	assert.Eventually(t, func() bool {
		return cfg.CurrentDownloadPath() == "/p20"
	}, 5*time.Second, 20*time.Millisecond)

	close(stop)
	wg.Wait()
}

func TestSetWritesConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "tide.yaml", "download_path: /a\n")

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)
	require.NoError(t, cfg.Set(KeyDownloadPath, "/b"))

	reloaded, err := Load(NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, "/b", reloaded.DownloadPath)
}

func TestWatcherNotifiesListeners(t *testing.T) {
	first := &Config{DownloadPath: "/a"}
	w := &Watcher{current: first}

	var gotOld, gotNew string
	w.OnChange(func(old, updated *Config) {
		gotOld, gotNew = old.DownloadPath, updated.DownloadPath
	})
	w.apply(&Config{DownloadPath: "/b"})

	assert.Equal(t, "/a", gotOld)
	assert.Equal(t, "/b", gotNew)
}
