// Package storetest holds a conformance suite every Store backend runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/store"
	"github.com/tide-ide/tide/pkg/models"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"TaskMetadataUpsert", testTaskMetadataUpsert},
		{"TaskMetadataDocChange", testDocChange},
		{"TaskMetadataNilVersusZero", testNilVersusZero},
		{"ListTaskMetadata", testList},
		{"Points", testPoints},
		{"ScalarState", testScalarState},
		{"ClearSession", testClearSession},
		{"ConcurrentUpserts", testConcurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func testTaskMetadataUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, found, err := s.TaskMetadata(ctx, "demo1", "t1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{
		TaskSetID: "demo1", TaskID: "t1", DocID: 7, Path: "kurssit/c/demo1", MaxPoints: models.Float(10),
	}))
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{
		TaskSetID: "demo1", TaskID: "t1", DocID: 7, Path: "kurssit/c/demo1", MaxPoints: models.Float(12),
		TaskFiles: []string{"main.py"},
	}))

	got, found, err := s.TaskMetadata(ctx, "demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.MaxPoints)
	assert.Equal(t, 12.0, *got.MaxPoints)
	assert.Equal(t, []string{"main.py"}, got.TaskFiles)
}

func testDocChange(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "demo1", TaskID: "t1", DocID: 7, Path: "p"}))
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "demo1", TaskID: "t1", DocID: 9, Path: "p"}))

	got, found, err := s.TaskMetadata(ctx, "demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(9), got.DocID)

	all, err := s.ListTaskMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(9), all[0].DocID)
}

func testNilVersusZero(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "d", TaskID: "nil"}))
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "d", TaskID: "zero", MaxPoints: models.Float(0)}))

	n, found, err := s.TaskMetadata(ctx, "d", "nil")
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, n.MaxPoints)

	z, found, err := s.TaskMetadata(ctx, "d", "zero")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, z.MaxPoints)
	assert.Equal(t, 0.0, *z.MaxPoints)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, set := range []string{"b", "a"} {
		for _, id := range []string{"2", "1"} {
			require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: set, TaskID: id}))
		}
	}

	all, err := s.ListTaskMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	var keys []string
	for _, m := range all {
		keys = append(keys, m.TaskSetID+"/"+m.TaskID)
	}
	assert.Equal(t, []string{"a/1", "a/2", "b/1", "b/2"}, keys)
}

func testPoints(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, found, err := s.Points(ctx, "kurssit/c/demo1", "t1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.PutPoints(ctx, "kurssit/c/demo1", "t1", models.PointsRecord{CurrentPoints: models.Float(3)}))
	require.NoError(t, s.PutPoints(ctx, "kurssit/c/demo1", "t1", models.PointsRecord{CurrentPoints: models.Float(4.5)}))
	require.NoError(t, s.PutPoints(ctx, "kurssit/c/demo1", "t2", models.PointsRecord{}))

	p, found, err := s.Points(ctx, "kurssit/c/demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4.5, p.Current())

	p, found, err = s.Points(ctx, "kurssit/c/demo1", "t2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, p.CurrentPoints)
}

func testScalarState(t *testing.T, s store.Store) {
	ctx := context.Background()

	login, err := s.LoginData(ctx)
	require.NoError(t, err)
	assert.False(t, login.IsLogged)

	require.NoError(t, s.SetLoginData(ctx, models.LoginData{IsLogged: true, Username: "student"}))
	login, err = s.LoginData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.LoginData{IsLogged: true, Username: "student"}, login)

	courses := []models.Course{{
		ID: 1, Name: "Ohjelmointi 1", Path: "kurssit/ohj1", Status: models.CourseActive,
		TaskSets: []models.TaskSet{{Name: "demo1", DocID: 7, Path: "kurssit/ohj1/demo1",
			Tasks: []models.TaskStub{{DocID: 7, IdeTaskID: "t1", Path: "kurssit/ohj1/demo1"}}}},
	}}
	require.NoError(t, s.SetCourses(ctx, courses))
	got, err := s.Courses(ctx)
	require.NoError(t, err)
	assert.Equal(t, courses, got)

	require.NoError(t, s.SetDownloadPath(ctx, "/home/student/tide"))
	dl, err := s.DownloadPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/home/student/tide", dl)
}

func testClearSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.SetLoginData(ctx, models.LoginData{IsLogged: true}))
	require.NoError(t, s.SetCourses(ctx, []models.Course{{ID: 1, Name: "c"}}))
	require.NoError(t, s.SetDownloadPath(ctx, "/dl"))
	require.NoError(t, s.PutTaskMetadata(ctx, models.TaskMetadata{TaskSetID: "d", TaskID: "t"}))
	require.NoError(t, s.PutPoints(ctx, "p", "t", models.PointsRecord{CurrentPoints: models.Float(1)}))

	require.NoError(t, s.ClearSession(ctx))

	login, err := s.LoginData(ctx)
	require.NoError(t, err)
	assert.False(t, login.IsLogged)

	courses, err := s.Courses(ctx)
	require.NoError(t, err)
	assert.Empty(t, courses)

	_, found, err := s.Points(ctx, "p", "t")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.TaskMetadata(ctx, "d", "t")
	require.NoError(t, err)
	assert.True(t, found, "task metadata survives logout")

	dl, err := s.DownloadPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/dl", dl)
}

func testConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				meta := models.TaskMetadata{
					TaskSetID: "demo", TaskID: fmt.Sprintf("t%d", i),
					MaxPoints: models.Float(float64(w)),
				}
				assert.NoError(t, s.PutTaskMetadata(ctx, meta))
				got, found, err := s.TaskMetadata(ctx, "demo", meta.TaskID)
				assert.NoError(t, err)
				if assert.True(t, found) {
					assert.NotNil(t, got.MaxPoints)
				}
			}
		}(w)
	}
	wg.Wait()

	all, err := s.ListTaskMetadata(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}
