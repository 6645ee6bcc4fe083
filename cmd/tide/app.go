package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/coursetree"
	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/sidecar"
	"github.com/tide-ide/tide/internal/store"
	"github.com/tide-ide/tide/internal/tracing"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	store    store.Store
	fs       afero.Fs
	ingestor *sidecar.Ingestor
	explorer *explorer.Explorer
	shutdown tracing.ShutdownFunc
}

func newApp(ctx context.Context) (*app, error) {
	shutdown, err := tracing.Init(tracing.Options{
		Exporter:    cfg.Tracing.Exporter,
		ServiceName: "tide",
		Version:     version,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logging.Debug("store opened", zap.String("backend", cfg.Store.Backend))

	fs := afero.NewOsFs()
	ing := sidecar.NewIngestor(fs, st)
	exp := explorer.New(explorer.Options{
		Fs:      fs,
		Store:   st,
		Builder: coursetree.NewBuilder(fs, ing),
		Paths:   cfg,
		Editor:  explorer.NewCommandEditor(cfg.Editor.Command, cfg.Editor.CloseCommand),
	})

	return &app{store: st, fs: fs, ingestor: ing, explorer: exp, shutdown: shutdown}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		logging.Warn("closing store", zap.Error(err))
	}
	if err := a.shutdown(ctx); err != nil {
		logging.Warn("tracing shutdown", zap.Error(err))
	}
}
