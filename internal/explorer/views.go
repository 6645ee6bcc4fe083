package explorer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tide-ide/tide/internal/coursetree"
	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/tree"
)

// Items returns the whole live tree with points and statuses.
func (e *Explorer) Items(ctx context.Context) []*models.Item {
	roots := e.Roots()
	items := make([]*models.Item, 0, len(roots))
	for _, r := range roots {
		items = append(items, e.agg.Item(ctx, r))
	}
	return items
}

// ChildItems returns shallow items for the children of path; an empty
// path lists the courses.
func (e *Explorer) ChildItems(ctx context.Context, path string) ([]*models.Item, error) {
	var nodes []*models.Node
	if path == "" {
		nodes = e.Roots()
	} else {
		n, ok := e.Lookup(path)
		if !ok {
			return nil, ErrNodeNotFound
		}
		nodes = e.Children(n)
	}

	items := make([]*models.Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, e.agg.Shallow(ctx, n))
	}
	return items, nil
}

// CourseSummary is the aggregate of one course.
type CourseSummary struct {
	Course string            `json:"course" yaml:"course"`
	Path   string            `json:"path" yaml:"path"`
	Points coursetree.Points `json:"points" yaml:"points"`
	Status models.Status     `json:"status" yaml:"status"`
	Files  int               `json:"files" yaml:"files"`
}

const summaryWorkers = 4

// Summaries aggregates every course concurrently.
func (e *Explorer) Summaries(ctx context.Context) ([]CourseSummary, error) {
	roots := e.Roots()
	out := make([]CourseSummary, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryWorkers)
	for i, r := range roots {
		i, r := i, r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := e.agg.Points(ctx, r)
			out[i] = CourseSummary{
				Course: r.Label,
				Path:   r.Path,
				Points: p,
				Status: p.Status(),
				Files:  len(tree.Files(r)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
