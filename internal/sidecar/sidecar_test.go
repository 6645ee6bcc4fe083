package sidecar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tide-ide/tide/internal/store/memory"
	"github.com/tide-ide/tide/pkg/models"
)

const sample = `{
  "course_parts": {
    "kurssit/tie/ohj2/demot/Demo1": {
      "tasks": {
        "first": {"doc_id": 7, "ide_task_id": "t1", "path": "kurssit/tie/ohj2/demot/Demo1", "max_points": 10,
                  "type": "cs", "task_files": [{"file_name": "main.py", "content": "print()"}]},
        "second": {"doc_id": 7, "ide_task_id": "t2", "path": "kurssit/tie/ohj2/demot/Demo1", "max_points": 0}
      }
    },
    "other-key": {
      "tasks": {
        "x": {"doc_id": 8, "ide_task_id": "t1", "path": "kurssit/tie/ohj2/demot/Demo2", "max_points": null}
      }
    }
  }
}`

func TestIngest(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/ohj2/.timdata", []byte(sample), 0o644))
	st := memory.New()
	ing := NewIngestor(fs, st)

	n, err := ing.Ingest(context.Background(), "/dl/ohj2/.timdata")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ctx := context.Background()
	t1, found, err := st.TaskMetadata(ctx, "Demo1", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10.0, t1.Max())
	assert.Equal(t, int64(7), t1.DocID)
	assert.Equal(t, []string{"main.py"}, t1.TaskFiles)

	t2, found, err := st.TaskMetadata(ctx, "Demo1", "t2")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, t2.MaxPoints)

	// identity comes from the record, not the outer key
	other, found, err := st.TaskMetadata(ctx, "Demo2", "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, other.MaxPoints)

	_, found, err = st.TaskMetadata(ctx, "other-key", "t1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(8), other.DocID)
}

func TestIngestProducesNTimesKRecords(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 3}, {4, 5}} {
		n, k := dims[0], dims[1]
		t.Run(fmt.Sprintf("%dx%d", n, k), func(t *testing.T) {
			var sets []string
			for s := 0; s < n; s++ {
				var tasks []string
				for i := 0; i < k; i++ {
					tasks = append(tasks, fmt.Sprintf(`"key%d": {"ide_task_id": "task%d", "path": "docs/Set%d", "max_points": 1}`, i, i, s))
				}
				sets = append(sets, fmt.Sprintf(`"outer%d": {"tasks": {%s}}`, s, strings.Join(tasks, ",")))
			}
			doc := fmt.Sprintf(`{"course_parts": {%s}}`, strings.Join(sets, ","))

			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/c/.timdata", []byte(doc), 0o644))
			st := memory.New()

			written, err := NewIngestor(fs, st).Ingest(context.Background(), "/c/.timdata")
			require.NoError(t, err)
			assert.Equal(t, n*k, written)

			all, err := st.ListTaskMetadata(context.Background())
			require.NoError(t, err)
			assert.Len(t, all, n*k)
			for s := 0; s < n; s++ {
				for i := 0; i < k; i++ {
					_, found, _ := st.TaskMetadata(context.Background(), fmt.Sprintf("Set%d", s), fmt.Sprintf("task%d", i))
					assert.True(t, found)
				}
			}
		})
	}
}

func TestIngestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{oops"},
		{"missing course_parts", `{"tasks": {}}`},
		{"wrong shape", `{"course_parts": {"a": {"tasks": ["x"]}}}`},
		{"wrong field type", `{"course_parts": {"a": {"tasks": {"k": {"ide_task_id": 5, "path": "p"}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/c/.timdata", []byte(tt.content), 0o644))
			st := memory.New()

			n, err := NewIngestor(fs, st).Ingest(context.Background(), "/c/.timdata")
			assert.Zero(t, n)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %v", err)
			assert.Equal(t, "/c/.timdata", perr.Path)

			all, _ := st.ListTaskMetadata(context.Background())
			assert.Empty(t, all)
		})
	}
}

func TestIngestMissingFile(t *testing.T) {
	_, err := NewIngestor(afero.NewMemMapFs(), memory.New()).Ingest(context.Background(), "/nope/.timdata")
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestInvalidRecordsSkipped(t *testing.T) {
	doc := `{"course_parts": {"s": {"tasks": {
		"ok": {"ide_task_id": "t1", "path": "docs/S"},
		"no-id": {"path": "docs/S"},
		"negative": {"ide_task_id": "t3", "path": "docs/S", "max_points": -1}
	}}}}`

	parsed, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	records, errs := parsed.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0].TaskID)
	require.Len(t, errs, 2)

	var rerr *RecordError
	require.True(t, errors.As(errs[0], &rerr))
	assert.Equal(t, "s", rerr.TaskSet)
}

type failingWriter struct{ calls int }

func (w *failingWriter) PutTaskMetadata(context.Context, models.TaskMetadata) error {
	w.calls++
	return errors.New("disk full")
}

func TestIngestReportsWriteErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c/.timdata", []byte(sample), 0o644))
	w := &failingWriter{}

	n, err := NewIngestor(fs, w).Ingest(context.Background(), "/c/.timdata")
	assert.Zero(t, n)
	assert.Error(t, err)
	assert.Equal(t, 3, w.calls)

	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
}

func TestTaskSetID(t *testing.T) {
	assert.Equal(t, "Demo1", TaskSetID("kurssit/tie/ohj2/demot/Demo1"))
	assert.Equal(t, "Demo1", TaskSetID("kurssit/tie/ohj2/demot/Demo1/"))
	assert.Equal(t, "solo", TaskSetID("solo"))
}

func TestIsSidecar(t *testing.T) {
	assert.True(t, IsSidecar(".timdata"))
	assert.True(t, IsSidecar("course.timdata"))
	assert.False(t, IsSidecar("main.py"))
}
