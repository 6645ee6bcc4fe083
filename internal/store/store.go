// Package store defines the metadata store used by the sidecar ingestor,
// the aggregator and the login/sync collaborators, and opens the
// configured backend.
package store

import (
	"context"

	"github.com/tide-ide/tide/pkg/models"
)

// Store persists task metadata, points and scalar session state.
// Implementations must make every single-key write atomic so concurrent
// readers never see a torn record.
type Store interface {
	// PutTaskMetadata upserts a record under (TaskSetID, TaskID).
	PutTaskMetadata(ctx context.Context, meta models.TaskMetadata) error
	TaskMetadata(ctx context.Context, taskSetID, taskID string) (models.TaskMetadata, bool, error)
	ListTaskMetadata(ctx context.Context) ([]models.TaskMetadata, error)

	PutPoints(ctx context.Context, path, taskID string, rec models.PointsRecord) error
	Points(ctx context.Context, path, taskID string) (models.PointsRecord, bool, error)

	LoginData(ctx context.Context) (models.LoginData, error)
	SetLoginData(ctx context.Context, data models.LoginData) error
	Courses(ctx context.Context) ([]models.Course, error)
	SetCourses(ctx context.Context, courses []models.Course) error
	DownloadPath(ctx context.Context) (string, error)
	SetDownloadPath(ctx context.Context, path string) error

	// ClearSession drops login state, courses and points on logout.
	// Sidecar-derived task metadata is kept; it is rebuilt from disk anyway.
	ClearSession(ctx context.Context) error

	Close() error
}
