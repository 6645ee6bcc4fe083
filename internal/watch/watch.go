// Package watch triggers automatic course tree refreshes when files under
// the download path change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/coursetree"
	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/internal/logging"
)

// DefaultDebounce is the quiet period before a burst of changes refreshes.
const DefaultDebounce = 500 * time.Millisecond

// Refresher is the part of the explorer the watcher drives.
type Refresher interface {
	Refresh(ctx context.Context, trigger explorer.Trigger) error
}

// Watcher watches a directory tree recursively and coalesces change bursts
// into single auto refreshes.
type Watcher struct {
	root     string
	debounce time.Duration
	target   Refresher
	fsw      *fsnotify.Watcher
	log      *zap.Logger

	kick     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher over root. Start must be called to begin watching.
func New(root string, debounce time.Duration, target Refresher) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		target:   target,
		fsw:      fsw,
		log:      logging.Named("watch"),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start adds root and its subdirectories and runs the event loops until
// ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.events(ctx)
	go w.debounceLoop(ctx)
	w.log.Info("watching download path", zap.String("path", w.root), zap.Duration("debounce", w.debounce))
	return nil
}

// Stop closes the underlying watcher and waits for the loops to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
	w.wg.Wait()
}

func ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasSuffix(part, coursetree.SkipSuffix) {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("cannot watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) events(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ignored(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
				}
			}
			w.log.Debug("change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			w.Notify()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// Notify schedules a refresh as if a file had changed.
func (w *Watcher) Notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.kick:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	err := w.target.Refresh(ctx, explorer.TriggerAuto)
	switch {
	case err == nil:
	case errors.Is(err, explorer.ErrUnauthenticated), errors.Is(err, explorer.ErrConfigurationMissing):
		w.log.Debug("auto refresh skipped", zap.Error(err))
	default:
		w.log.Warn("auto refresh failed", zap.Error(err))
	}
}
