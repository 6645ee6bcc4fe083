// Package timapi fetches task points from a TIM server.
package timapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
)

const taskPointsEndpoint = "/api/ide/taskPoints"

// ErrNotFound is returned when the server has no points for a task.
var ErrNotFound = errors.New("task points not found")

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Client is a TIM points client.
type Client struct {
	client *resty.Client
	log    *zap.Logger
}

// New creates a client. Server errors and transport failures are retried.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(8 * opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	return &Client{client: client, log: logging.Named("timapi")}
}

type taskPointsResponse struct {
	CurrentPoints *float64 `json:"current_points"`
}

// FetchTaskPoints returns the student's points for one task.
func (c *Client) FetchTaskPoints(ctx context.Context, docPath, taskID string) (models.PointsRecord, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("path", docPath).
		SetQueryParam("ide_task_id", taskID).
		Get(taskPointsEndpoint)
	if err != nil {
		return models.PointsRecord{}, fmt.Errorf("failed to fetch points: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return models.PointsRecord{}, ErrNotFound
	default:
		return models.PointsRecord{}, fmt.Errorf("fetch points failed: status %d", resp.StatusCode())
	}

	var body taskPointsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return models.PointsRecord{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return models.PointsRecord{CurrentPoints: body.CurrentPoints}, nil
}

// PointsStore is the part of the metadata store SyncPoints uses.
type PointsStore interface {
	ListTaskMetadata(ctx context.Context) ([]models.TaskMetadata, error)
	PutPoints(ctx context.Context, path, taskID string, rec models.PointsRecord) error
}

// SyncResult counts the outcome of SyncPoints.
type SyncResult struct {
	Updated int
	Missing int
	Failed  int
}

// SyncPoints fetches points for every stored task and overwrites the local
// records. Individual failures are counted and joined into the error.
func (c *Client) SyncPoints(ctx context.Context, st PointsStore) (SyncResult, error) {
	tasks, err := st.ListTaskMetadata(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list tasks: %w", err)
	}

	var res SyncResult
	var errs []error
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := c.FetchTaskPoints(ctx, t.Path, t.TaskID)
		switch {
		case errors.Is(err, ErrNotFound):
			res.Missing++
			continue
		case err != nil:
			res.Failed++
			metrics.RecordRemoteSync(false)
			errs = append(errs, fmt.Errorf("%s/%s: %w", t.Path, t.TaskID, err))
			continue
		}
		if err := st.PutPoints(ctx, t.Path, t.TaskID, rec); err != nil {
			res.Failed++
			metrics.RecordRemoteSync(false)
			errs = append(errs, err)
			continue
		}
		res.Updated++
		metrics.RecordRemoteSync(true)
	}

	c.log.Info("points synced",
		zap.Int("tasks", len(tasks)),
		zap.Int("updated", res.Updated),
		zap.Int("missing", res.Missing),
		zap.Int("failed", res.Failed))
	return res, errors.Join(errs...)
}
