package sqlstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/store"
	"github.com/tide-ide/tide/internal/store/sqlstore"
	"github.com/tide-ide/tide/internal/store/storetest"
	"github.com/tide-ide/tide/pkg/models"
)

func TestSQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlstore.OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tide.db")

	s, err := sqlstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutPoints(ctx, "kurssit/c/demo1", "t1", models.PointsRecord{CurrentPoints: models.Float(2)}))
	require.NoError(t, s.Close())

	s, err = sqlstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	p, found, err := s.Points(ctx, "kurssit/c/demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.0, p.Current())
}

func TestMigrateIsIdempotent(t *testing.T) {
	s, err := sqlstore.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

// Set TIDE_TEST_DATABASE_URL to run the suite against PostgreSQL.
func TestPostgres(t *testing.T) {
	url := os.Getenv("TIDE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TIDE_TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlstore.OpenPostgres(context.Background(), url)
		require.NoError(t, err)
		for _, table := range []string{"task_metadata", "points", "state"} {
			_, err := s.DB().Exec("TRUNCATE " + table)
			require.NoError(t, err)
		}
		return s
	})
}
