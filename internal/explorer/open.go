package explorer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/tree"
)

// OpenTask handles a click on a tree item. Files open with the cursor on
// TaskLine; directories are ignored. A file that cannot be opened yields
// an *OpenError after the tree has been refreshed.
func (e *Explorer) OpenTask(ctx context.Context, path string) error {
	n, ok := e.Lookup(path)
	if !ok {
		return ErrNodeNotFound
	}
	if n.IsDir() {
		return nil
	}

	if err := e.open(ctx, n, true); err != nil {
		e.notice("error", msgOpenFailed)
		e.refreshAfterFailure(ctx)
		return err
	}
	return nil
}

// OpenTasksIn opens every file below path, each in its own editor.
// Failures are collected; the tree is refreshed once if any occurred.
func (e *Explorer) OpenTasksIn(ctx context.Context, path string) (int, error) {
	n, ok := e.Lookup(path)
	if !ok {
		return 0, ErrNodeNotFound
	}

	var errs []error
	opened := 0
	for _, f := range tree.Files(n) {
		if err := ctx.Err(); err != nil {
			return opened, err
		}
		if err := e.open(ctx, f, false); err != nil {
			errs = append(errs, err)
			continue
		}
		opened++
	}

	if len(errs) > 0 {
		e.notice("error", msgOpenAllFailed)
		e.refreshAfterFailure(ctx)
	}
	return opened, errors.Join(errs...)
}

func (e *Explorer) open(ctx context.Context, n *models.Node, preview bool) error {
	if _, err := e.fs.Stat(n.Path); err != nil {
		return &OpenError{Path: n.Path, Err: err}
	}
	if err := e.editor.Open(ctx, n.Path, TaskLine, preview); err != nil {
		return &OpenError{Path: n.Path, Err: err}
	}
	return nil
}

func (e *Explorer) refreshAfterFailure(ctx context.Context) {
	if err := e.Refresh(ctx, TriggerManual); err != nil {
		e.log.Warn("refresh after open failure", zap.Error(err))
	}
}
