package badgerstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/store"
	"github.com/tide-ide/tide/internal/store/badgerstore"
	"github.com/tide-ide/tide/internal/store/storetest"
	"github.com/tide-ide/tide/pkg/models"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := badgerstore.Open(badgerstore.InMemoryConfig())
		require.NoError(t, err)
		return s
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	ctx := context.Background()

	s, err := badgerstore.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "demo1", TaskID: "t1", MaxPoints: models.Float(5)}))
	require.NoError(t, s.SetLoginData(ctx, models.LoginData{IsLogged: true}))
	require.NoError(t, s.Close())

	s, err = badgerstore.Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, found, err := s.TaskMetadata(ctx, "demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5.0, got.Max())

	login, err := s.LoginData(ctx)
	require.NoError(t, err)
	assert.True(t, login.IsLogged)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := badgerstore.Open(badgerstore.Config{})
	assert.Error(t, err)
}
