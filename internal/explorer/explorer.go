// Package explorer owns the live course tree: it rebuilds it on login,
// manual and watcher triggers, wipes it on logout, answers tree queries
// and notifies subscribers after every change.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/coursetree"
	"github.com/tide-ide/tide/internal/events"
	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/internal/store"
	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/tree"
)

// Trigger names what asked for a rebuild.
type Trigger string

const (
	TriggerLogin  Trigger = "login"
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// State is the refresh state machine's state.
type State string

const (
	StateIdle       State = "idle"
	StateRefreshing State = "refreshing"
)

var tracer = otel.Tracer("github.com/tide-ide/tide/internal/explorer")

// TreeBuilder builds course roots from a download directory.
type TreeBuilder interface {
	Build(ctx context.Context, root string) ([]*models.Node, coursetree.BuildStats, error)
}

// PathSource yields the configured download path, re-read per rebuild.
type PathSource interface {
	CurrentDownloadPath() string
}

// PathFunc adapts a function to PathSource.
type PathFunc func() string

func (f PathFunc) CurrentDownloadPath() string { return f() }

// Options wires an Explorer.
type Options struct {
	Fs      afero.Fs
	Store   store.Store
	Builder TreeBuilder
	Paths   PathSource
	Editor  Editor
	Events  *events.Broadcaster
}

// Explorer is the refresh controller and tree owner.
type Explorer struct {
	// refreshMu serializes clear, walk and publish; queued callers block.
	refreshMu sync.Mutex

	mu    sync.RWMutex
	roots []*models.Node
	state State
	built time.Time

	fs      afero.Fs
	store   store.Store
	builder TreeBuilder
	agg     *coursetree.Aggregator
	paths   PathSource
	editor  Editor
	events  *events.Broadcaster
	log     *zap.Logger
}

// New creates an Explorer with an empty tree.
func New(opts Options) *Explorer {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Editor == nil {
		opts.Editor = LogEditor{}
	}
	if opts.Events == nil {
		opts.Events = events.NewBroadcaster()
	}
	if opts.Paths == nil {
		opts.Paths = PathFunc(func() string { return "" })
	}
	return &Explorer{
		state:   StateIdle,
		fs:      opts.Fs,
		store:   opts.Store,
		builder: opts.Builder,
		agg:     coursetree.NewAggregator(opts.Store),
		paths:   opts.Paths,
		editor:  opts.Editor,
		events:  opts.Events,
		log:     logging.Named("explorer"),
	}
}

// Events returns the change notification broadcaster.
func (e *Explorer) Events() *events.Broadcaster {
	return e.events
}

// Aggregator returns the aggregator reading the explorer's store.
func (e *Explorer) Aggregator() *coursetree.Aggregator {
	return e.agg
}

// State reports whether a rebuild is running.
func (e *Explorer) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// BuiltAt is the time of the last published tree.
func (e *Explorer) BuiltAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.built
}

// Roots returns the course nodes of the live tree.
func (e *Explorer) Roots() []*models.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*models.Node(nil), e.roots...)
}

// Children returns n's children; nil n means the roots.
func (e *Explorer) Children(n *models.Node) []*models.Node {
	if n == nil {
		return e.Roots()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*models.Node(nil), n.Children...)
}

// Lookup finds a node of the live tree by path.
func (e *Explorer) Lookup(path string) (*models.Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := tree.FindInForest(e.roots, path)
	return n, n != nil
}

func (e *Explorer) publish(roots []*models.Node) {
	e.mu.Lock()
	e.roots = roots
	e.built = time.Now()
	e.mu.Unlock()
	metrics.SetTreeSize(tree.CountForest(roots))
}

func (e *Explorer) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Explorer) notice(level, msg string) {
	e.events.Publish(events.Event{Type: events.EventNotice, Level: level, Message: msg})
}

// downloadPath prefers the live configuration and falls back to the path
// persisted in the store.
func (e *Explorer) downloadPath(ctx context.Context) string {
	if p := strings.TrimSpace(e.paths.CurrentDownloadPath()); p != "" {
		return p
	}
	p, err := e.store.DownloadPath(ctx)
	if err != nil {
		e.log.Warn("reading stored download path failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(p)
}

func (e *Explorer) authenticated(ctx context.Context) (bool, error) {
	login, err := e.store.LoginData(ctx)
	if err != nil {
		return false, fmt.Errorf("read login state: %w", err)
	}
	return login.IsLogged, nil
}

// Refresh rebuilds the tree from disk. It is rejected with
// ErrUnauthenticated, before any filesystem access, when nobody is logged
// in. Concurrent calls run one after another, and a call that was queued
// while the session ended is rejected once it gets its turn.
func (e *Explorer) Refresh(ctx context.Context, trigger Trigger) error {
	if err := e.requireLogin(ctx, trigger); err != nil {
		return err
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()
	if err := e.requireLogin(ctx, trigger); err != nil {
		return err
	}
	return e.rebuild(ctx, trigger)
}

func (e *Explorer) requireLogin(ctx context.Context, trigger Trigger) error {
	ok, err := e.authenticated(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	metrics.RecordRefreshRejected("unauthenticated")
	if trigger != TriggerAuto {
		e.notice("error", msgLoginRequired)
	}
	return ErrUnauthenticated
}

// rebuild must be called with refreshMu held.
func (e *Explorer) rebuild(ctx context.Context, trigger Trigger) error {
	ctx, span := tracer.Start(ctx, "explorer.Refresh",
		trace.WithAttributes(attribute.String("explorer.trigger", string(trigger))))
	defer span.End()

	e.setState(StateRefreshing)
	defer e.setState(StateIdle)

	start := time.Now()
	root := e.downloadPath(ctx)
	roots, stats, err := e.builder.Build(ctx, root)
	metrics.RecordRebuild(string(trigger), time.Since(start), err == nil)

	switch {
	case errors.Is(err, ErrConfigurationMissing):
		metrics.RecordRefreshRejected("configuration_missing")
		e.publish(nil)
		e.notice("error", msgNoDownload)
		e.events.Publish(events.Event{Type: events.EventTreeChanged, Trigger: string(trigger)})
		span.SetStatus(codes.Error, err.Error())
		return err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("build tree: %w", err)
	}

	// Logout may have cleared the session while the walk ran.
	if ok, err := e.authenticated(ctx); err != nil || !ok {
		metrics.RecordRefreshRejected("unauthenticated")
		e.log.Info("discarding tree built across a logout", zap.String("trigger", string(trigger)))
		if err != nil {
			return err
		}
		return ErrUnauthenticated
	}

	e.publish(roots)
	e.events.Publish(events.Event{Type: events.EventTreeChanged, Trigger: string(trigger)})

	span.SetAttributes(attribute.Int("explorer.courses", len(roots)))
	e.log.Info("course tree rebuilt",
		zap.String("trigger", string(trigger)),
		zap.String("root", root),
		zap.Int("courses", stats.Courses),
		zap.Int("files", stats.Files),
		zap.Int("sidecars", stats.Sidecars),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Wipe clears the tree without rebuilding and closes open editors.
func (e *Explorer) Wipe(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	e.publish(nil)
	e.events.Publish(events.Event{Type: events.EventTreeWiped})

	if err := e.editor.CloseAll(ctx); err != nil {
		e.log.Warn("closing editors failed", zap.Error(err))
	}
	e.log.Info("course tree wiped")
	return nil
}

// Activate refreshes once at startup when a login is already stored.
func (e *Explorer) Activate(ctx context.Context) error {
	ok, err := e.authenticated(ctx)
	if err != nil || !ok {
		return err
	}
	return e.Refresh(ctx, TriggerLogin)
}

// Login records a successful login and rebuilds the tree.
func (e *Explorer) Login(ctx context.Context, username string) error {
	if err := e.store.SetLoginData(ctx, models.LoginData{IsLogged: true, Username: username}); err != nil {
		return fmt.Errorf("store login: %w", err)
	}
	return e.Refresh(ctx, TriggerLogin)
}

// Logout clears the session state and wipes the tree.
func (e *Explorer) Logout(ctx context.Context) error {
	if err := e.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return e.Wipe(ctx)
}

// SetDownloadPath persists a changed download path setting. Empty values
// are ignored with a warning.
func (e *Explorer) SetDownloadPath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		e.log.Warn("ignoring empty download path")
		return nil
	}
	if err := e.store.SetDownloadPath(ctx, path); err != nil {
		return fmt.Errorf("store download path: %w", err)
	}
	e.log.Info("download path updated", zap.String("path", path))
	return nil
}
