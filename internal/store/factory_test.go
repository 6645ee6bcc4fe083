package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/config"
	"github.com/tide-ide/tide/internal/store"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Backend: "memory"}},
		{"badger", config.StoreConfig{Backend: "badger", Path: filepath.Join(dir, "badger")}},
		{"sqlite", config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "tide.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := store.Open(ctx, tt.cfg)
			require.NoError(t, err)
			require.NoError(t, s.SetDownloadPath(ctx, "/dl"))
			dl, err := s.DownloadPath(ctx)
			require.NoError(t, err)
			assert.Equal(t, "/dl", dl)
			require.NoError(t, s.Close())
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.Open(context.Background(), config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}
