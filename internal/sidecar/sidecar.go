// Package sidecar parses .timdata files and writes their task records into
// the metadata store.
package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
)

// Suffix marks sidecar files in the course tree.
const Suffix = ".timdata"

var tracer = otel.Tracer("github.com/tide-ide/tide/internal/sidecar")

var validate = validator.New()

// Document is the on-disk sidecar shape.
type Document struct {
	CourseParts map[string]TaskSet `json:"course_parts" validate:"required"`
}

// TaskSet is one entry of course_parts.
type TaskSet struct {
	Tasks map[string]Task `json:"tasks"`
}

// Task is one leaf record. Unknown fields are ignored.
type Task struct {
	DocID         int64      `json:"doc_id"`
	IdeTaskID     string     `json:"ide_task_id" validate:"required"`
	Path          string     `json:"path" validate:"required"`
	MaxPoints     *float64   `json:"max_points" validate:"omitempty,gte=0"`
	Type          string     `json:"type"`
	TaskDirectory string     `json:"task_directory"`
	TaskFiles     []TaskFile `json:"task_files"`
	Stem          string     `json:"stem"`
	Header        string     `json:"header"`
}

// TaskFile names one file a task consists of.
type TaskFile struct {
	FileName string `json:"file_name"`
}

// ParseError reports a sidecar that could not be read or decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sidecar %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsSidecar reports whether name is a sidecar file name.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// Parse decodes a sidecar document and checks its top-level shape.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &doc, nil
}

// TaskSetID derives the task set identifier from a record's document
// path: the last path element, which is also the task set's directory
// name on disk.
func TaskSetID(docPath string) string {
	return path.Base(strings.TrimRight(docPath, "/"))
}

// Metadata converts a validated record.
func (t Task) Metadata() models.TaskMetadata {
	meta := models.TaskMetadata{
		TaskSetID:     TaskSetID(t.Path),
		TaskID:        t.IdeTaskID,
		DocID:         t.DocID,
		Path:          t.Path,
		MaxPoints:     t.MaxPoints,
		Type:          t.Type,
		TaskDirectory: t.TaskDirectory,
		Stem:          t.Stem,
		Header:        t.Header,
	}
	for _, f := range t.TaskFiles {
		if f.FileName != "" {
			meta.TaskFiles = append(meta.TaskFiles, f.FileName)
		}
	}
	return meta
}

// RecordError reports one invalid task record inside a sidecar.
type RecordError struct {
	TaskSet string
	TaskKey string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("task %s/%s: %v", e.TaskSet, e.TaskKey, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Records flattens a document into task records, in key order. Invalid
// records are returned as errors and left out.
func (d *Document) Records() ([]models.TaskMetadata, []error) {
	var out []models.TaskMetadata
	var errs []error

	for _, setKey := range sortedKeys(d.CourseParts) {
		tasks := d.CourseParts[setKey].Tasks
		for _, taskKey := range sortedKeys(tasks) {
			task := tasks[taskKey]
			if err := validate.Struct(task); err != nil {
				errs = append(errs, &RecordError{TaskSet: setKey, TaskKey: taskKey, Err: err})
				continue
			}
			out = append(out, task.Metadata())
		}
	}
	return out, errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writer receives ingested task records.
type Writer interface {
	PutTaskMetadata(ctx context.Context, meta models.TaskMetadata) error
}

// Ingestor reads sidecar files from a filesystem into a Writer.
type Ingestor struct {
	fs  afero.Fs
	out Writer
	log *zap.Logger
}

// NewIngestor creates an ingestor reading from fs.
func NewIngestor(fs afero.Fs, out Writer) *Ingestor {
	return &Ingestor{fs: fs, out: out, log: logging.Named("sidecar")}
}

// Ingest reads one sidecar and upserts every valid record. It returns the
// number of records written. A *ParseError means nothing was written.
func (i *Ingestor) Ingest(ctx context.Context, file string) (int, error) {
	ctx, span := tracer.Start(ctx, "sidecar.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("sidecar.path", file))

	n, err := i.ingest(ctx, file)
	metrics.RecordSidecar(n, err == nil)
	span.SetAttributes(attribute.Int("sidecar.tasks", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}

func (i *Ingestor) ingest(ctx context.Context, file string) (int, error) {
	f, err := i.fs.Open(file)
	if err != nil {
		return 0, &ParseError{Path: file, Err: err}
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return 0, &ParseError{Path: file, Err: err}
	}

	records, recErrs := doc.Records()
	for _, e := range recErrs {
		i.log.Warn("skipping invalid task record", zap.String("sidecar", file), zap.Error(e))
	}

	written := 0
	var writeErrs []error
	for _, meta := range records {
		if err := i.out.PutTaskMetadata(ctx, meta); err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("store %s/%s: %w", meta.TaskSetID, meta.TaskID, err))
			continue
		}
		written++
	}

	i.log.Debug("sidecar ingested",
		zap.String("sidecar", file),
		zap.Int("tasks", written),
		zap.Int("invalid", len(recErrs)))
	return written, errors.Join(writeErrs...)
}
