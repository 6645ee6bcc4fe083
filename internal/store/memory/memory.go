// Package memory is an in-process Store backed by maps.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
)

type key struct {
	a, b string
}

// Store keeps everything in memory. It is lost on exit.
type Store struct {
	mu       sync.RWMutex
	tasks    map[key]models.TaskMetadata
	points   map[key]models.PointsRecord
	login    models.LoginData
	courses  []models.Course
	download string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tasks:  make(map[key]models.TaskMetadata),
		points: make(map[key]models.PointsRecord),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOp("memory", op, time.Since(start))
}

func (s *Store) PutTaskMetadata(_ context.Context, meta models.TaskMetadata) error {
	defer observe("put_task", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[key{meta.TaskSetID, meta.TaskID}] = cloneTask(meta)
	return nil
}

func (s *Store) TaskMetadata(_ context.Context, taskSetID, taskID string) (models.TaskMetadata, bool, error) {
	defer observe("get_task", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.tasks[key{taskSetID, taskID}]
	return cloneTask(m), ok, nil
}

func (s *Store) ListTaskMetadata(_ context.Context) ([]models.TaskMetadata, error) {
	defer observe("list_tasks", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TaskMetadata, 0, len(s.tasks))
	for _, m := range s.tasks {
		out = append(out, cloneTask(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskSetID != out[j].TaskSetID {
			return out[i].TaskSetID < out[j].TaskSetID
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func (s *Store) PutPoints(_ context.Context, path, taskID string, rec models.PointsRecord) error {
	defer observe("put_points", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[key{path, taskID}] = clonePoints(rec)
	return nil
}

func (s *Store) Points(_ context.Context, path, taskID string) (models.PointsRecord, bool, error) {
	defer observe("get_points", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[key{path, taskID}]
	return clonePoints(p), ok, nil
}

func (s *Store) LoginData(context.Context) (models.LoginData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.login, nil
}

func (s *Store) SetLoginData(_ context.Context, data models.LoginData) error {
	s.mu.Lock()
	s.login = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Courses(context.Context) ([]models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Course(nil), s.courses...), nil
}

func (s *Store) SetCourses(_ context.Context, courses []models.Course) error {
	s.mu.Lock()
	s.courses = append([]models.Course(nil), courses...)
	s.mu.Unlock()
	return nil
}

func (s *Store) DownloadPath(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.download, nil
}

func (s *Store) SetDownloadPath(_ context.Context, path string) error {
	s.mu.Lock()
	s.download = path
	s.mu.Unlock()
	return nil
}

func (s *Store) ClearSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login = models.LoginData{}
	s.courses = nil
	s.points = make(map[key]models.PointsRecord)
	return nil
}

func (s *Store) Close() error {
	return nil
}

func cloneTask(m models.TaskMetadata) models.TaskMetadata {
	if m.MaxPoints != nil {
		m.MaxPoints = models.Float(*m.MaxPoints)
	}
	m.TaskFiles = append([]string(nil), m.TaskFiles...)
	return m
}

func clonePoints(p models.PointsRecord) models.PointsRecord {
	if p.CurrentPoints != nil {
		p.CurrentPoints = models.Float(*p.CurrentPoints)
	}
	return p
}
