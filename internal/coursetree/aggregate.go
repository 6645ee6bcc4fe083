package coursetree

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/pkg/models"
)

// PointsReader is the part of the metadata store the aggregator reads.
type PointsReader interface {
	TaskMetadata(ctx context.Context, taskSetID, taskID string) (models.TaskMetadata, bool, error)
	Points(ctx context.Context, path, taskID string) (models.PointsRecord, bool, error)
}

// Points is an aggregated (max, current) pair.
type Points struct {
	Max     float64 `json:"max_points" yaml:"max_points"`
	Current float64 `json:"current_points" yaml:"current_points"`
}

// Add returns the element-wise sum.
func (p Points) Add(o Points) Points {
	return Points{Max: p.Max + o.Max, Current: p.Current + o.Current}
}

// Status classifies the pair.
func (p Points) Status() models.Status {
	return models.Classify(p.Max, p.Current)
}

// Aggregator computes points for nodes on demand. Nothing is cached; every
// call reads the store again.
type Aggregator struct {
	store PointsReader
	log   *zap.Logger
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store PointsReader) *Aggregator {
	return &Aggregator{store: store, log: logging.Named("aggregate")}
}

// TaskIdentity derives (taskSet, taskID) from a task file path: the task
// id is the parent directory name and the task set the grandparent's.
func TaskIdentity(path string) (taskSet, taskID string, ok bool) {
	parent := filepath.Dir(path)
	grand := filepath.Dir(parent)
	taskID = filepath.Base(parent)
	taskSet = filepath.Base(grand)
	if parent == path || grand == parent || taskID == string(filepath.Separator) || taskSet == string(filepath.Separator) {
		return "", "", false
	}
	return taskSet, taskID, true
}

// Points returns the node's aggregated points. Directories sum their
// children; files read their task record.
func (a *Aggregator) Points(ctx context.Context, n *models.Node) Points {
	if n == nil {
		return Points{}
	}
	if !n.IsDir() {
		return a.filePoints(ctx, n)
	}
	var sum Points
	for _, child := range n.Children {
		sum = sum.Add(a.Points(ctx, child))
	}
	return sum
}

// MaxPoints is Points(n).Max.
func (a *Aggregator) MaxPoints(ctx context.Context, n *models.Node) float64 {
	return a.Points(ctx, n).Max
}

// CurrentPoints is Points(n).Current.
func (a *Aggregator) CurrentPoints(ctx context.Context, n *models.Node) float64 {
	return a.Points(ctx, n).Current
}

// Status classifies the node's aggregated points.
func (a *Aggregator) Status(ctx context.Context, n *models.Node) models.Status {
	return a.Points(ctx, n).Status()
}

func (a *Aggregator) filePoints(ctx context.Context, n *models.Node) Points {
	set, id, ok := TaskIdentity(n.Path)
	if !ok {
		return Points{}
	}

	meta, found, err := a.store.TaskMetadata(ctx, set, id)
	if err != nil {
		a.log.Warn("task metadata lookup failed", zap.String("path", n.Path), zap.Error(err))
		return Points{}
	}
	if !found {
		return Points{}
	}

	p := Points{Max: meta.Max()}
	rec, found, err := a.store.Points(ctx, meta.Path, meta.TaskID)
	if err != nil {
		a.log.Warn("points lookup failed", zap.String("path", n.Path), zap.Error(err))
		return p
	}
	if found {
		p.Current = rec.Current()
	}
	return p
}

// Item builds the widget view of n, including its whole subtree. Sums are
// computed bottom-up in one pass and agree with Points.
func (a *Aggregator) Item(ctx context.Context, n *models.Node) *models.Item {
	item := &models.Item{
		Label:       n.Label,
		Path:        n.Path,
		Kind:        n.Kind,
		Collapsible: n.Collapsible(),
	}

	var p Points
	if n.IsDir() {
		for _, child := range n.Children {
			ci := a.Item(ctx, child)
			item.Children = append(item.Children, ci)
			p = p.Add(Points{Max: ci.MaxPoints, Current: ci.Current})
		}
	} else {
		p = a.filePoints(ctx, n)
	}

	item.MaxPoints = p.Max
	item.Current = p.Current
	item.Status = p.Status()
	item.Icon = item.Status.Icon()
	return item
}

// Shallow builds the view of n without descendants, for lazy widgets.
func (a *Aggregator) Shallow(ctx context.Context, n *models.Node) *models.Item {
	p := a.Points(ctx, n)
	status := p.Status()
	return &models.Item{
		Label:       n.Label,
		Path:        n.Path,
		Kind:        n.Kind,
		Collapsible: n.Collapsible(),
		MaxPoints:   p.Max,
		Current:     p.Current,
		Status:      status,
		Icon:        status.Icon(),
	}
}
