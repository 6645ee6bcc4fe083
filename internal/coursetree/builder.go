// Package coursetree builds the course tree from the download directory
// and aggregates task points over it.
package coursetree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/sidecar"
	"github.com/tide-ide/tide/pkg/models"
)

// SkipSuffix marks housekeeping directories that are never traversed.
const SkipSuffix = ".vscode"

// CoursePrefix is prepended to course directory labels.
const CoursePrefix = "Course: "

// DefaultMaxDepth bounds recursion so symlink cycles terminate.
const DefaultMaxDepth = 32

// ErrConfigurationMissing is returned when no download path is set.
var ErrConfigurationMissing = errors.New("download path not configured")

var tracer = otel.Tracer("github.com/tide-ide/tide/internal/coursetree")

// Ingester consumes sidecar files found during a walk.
type Ingester interface {
	Ingest(ctx context.Context, path string) (int, error)
}

// Builder walks a download directory into course nodes.
type Builder struct {
	fs       afero.Fs
	ingest   Ingester
	maxDepth int
	log      *zap.Logger
}

// NewBuilder creates a builder reading from fs. ingest may be nil, in
// which case sidecar files are only skipped.
func NewBuilder(fs afero.Fs, ingest Ingester) *Builder {
	return &Builder{
		fs:       fs,
		ingest:   ingest,
		maxDepth: DefaultMaxDepth,
		log:      logging.Named("coursetree"),
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func (b *Builder) WithMaxDepth(depth int) *Builder {
	b.maxDepth = depth
	return b
}

// BuildStats counts what a walk saw.
type BuildStats struct {
	Courses  int
	Dirs     int
	Files    int
	Sidecars int
	Skipped  int
}

type walk struct {
	*Builder
	ctx   context.Context
	stats BuildStats
}

// Build returns one directory node per course under root. An empty root
// is ErrConfigurationMissing; a missing root yields no courses.
func (b *Builder) Build(ctx context.Context, root string) ([]*models.Node, BuildStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, BuildStats{}, ErrConfigurationMissing
	}

	ctx, span := tracer.Start(ctx, "coursetree.Build")
	defer span.End()
	span.SetAttributes(attribute.String("coursetree.root", root))

	entries, err := afero.ReadDir(b.fs, root)
	if err != nil {
		if !os.IsNotExist(err) {
			b.log.Warn("cannot read download path", zap.String("path", root), zap.Error(err))
		}
		return nil, BuildStats{}, nil
	}

	w := &walk{Builder: b, ctx: ctx}
	var courses []*models.Node
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, w.stats, err
		}
		full := filepath.Join(root, entry.Name())
		info, ok := w.resolve(full, entry)
		if !ok || !info.IsDir() || strings.HasSuffix(entry.Name(), SkipSuffix) {
			continue
		}

		course := models.NewDir(CoursePrefix+entry.Name(), full)
		w.stats.Courses++
		if err := w.dir(full, course, 1); err != nil {
			return nil, w.stats, err
		}
		courses = append(courses, course)
	}

	span.SetAttributes(
		attribute.Int("coursetree.courses", w.stats.Courses),
		attribute.Int("coursetree.files", w.stats.Files),
		attribute.Int("coursetree.sidecars", w.stats.Sidecars))
	return courses, w.stats, nil
}

// resolve follows symlinks. Broken links are skipped.
func (w *walk) resolve(full string, entry os.FileInfo) (os.FileInfo, bool) {
	if entry.Mode()&os.ModeSymlink == 0 {
		return entry, true
	}
	info, err := w.fs.Stat(full)
	if err != nil {
		w.stats.Skipped++
		w.log.Debug("skipping unresolvable entry", zap.String("path", full), zap.Error(err))
		return nil, false
	}
	return info, true
}

func (w *walk) dir(dir string, parent *models.Node, depth int) error {
	if depth > w.maxDepth {
		w.stats.Skipped++
		w.log.Warn("max depth reached, not descending", zap.String("path", dir))
		return nil
	}

	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		w.stats.Skipped++
		w.log.Debug("skipping unreadable directory", zap.String("path", dir), zap.Error(err))
		return nil
	}

	for _, entry := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		full := filepath.Join(dir, name)
		info, ok := w.resolve(full, entry)
		if !ok {
			continue
		}

		if !info.IsDir() {
			if sidecar.IsSidecar(name) {
				w.stats.Sidecars++
				w.ingestSidecar(full)
				continue
			}
			w.stats.Files++
			parent.AddChild(models.NewFile(name, full))
			continue
		}

		if strings.HasSuffix(name, SkipSuffix) {
			continue
		}
		w.stats.Dirs++
		child := models.NewDir(name, full)
		parent.AddChild(child)
		if err := w.dir(full, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) ingestSidecar(path string) {
	if w.ingest == nil {
		return
	}
	if _, err := w.ingest.Ingest(w.ctx, path); err != nil {
		var perr *sidecar.ParseError
		if errors.As(err, &perr) {
			w.log.Warn("ignoring malformed sidecar", zap.String("path", path), zap.Error(err))
			return
		}
		w.log.Error("sidecar ingestion incomplete", zap.String("path", path), zap.Error(err))
	}
}
