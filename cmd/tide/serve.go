package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/api"
	"github.com/tide-ide/tide/internal/auth"
	"github.com/tide-ide/tide/internal/config"
	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the course tree over HTTP and watch for changes",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "API listen address")
	_ = v.BindPFlag(config.KeyListenAddr, serveCmd.Flags().Lookup("listen"))
}

// dbStatsReporter is implemented by SQL-backed stores.
type dbStatsReporter interface {
	UpdateConnectionMetrics()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	logging.Info("tide starting",
		zap.String("version", version),
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("metrics", cfg.Server.MetricsAddr),
		zap.String("store", cfg.Store.Backend))

	if cfg.File() != "" {
		cfg.WatchFile(func(err error) {
			logging.Warn("ignoring invalid config change", zap.Error(err))
		}).OnChange(configChanged(ctx, a.explorer))
	}

	if err := a.explorer.Activate(ctx); err != nil {
		logging.Warn("activation refresh failed", zap.Error(err))
	}

	if cfg.Watch.Enabled {
		if root := cfg.CurrentDownloadPath(); root != "" {
			w, err := watch.New(root, cfg.Watch.Debounce, a.explorer)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				logging.Warn("file watcher disabled", zap.String("path", root), zap.Error(err))
			} else {
				defer w.Stop()
			}
		}
	}

	if r, ok := a.store.(dbStatsReporter); ok {
		go func() {
			t := time.NewTicker(15 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					r.UpdateConnectionMetrics()
				}
			}
		}()
	}

	if cfg.Server.MetricsAddr != "" {
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsSrv.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.NewServer(a.explorer, auth.New(cfg.Server.APISecret), version).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("API server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logging.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("server shutdown error", zap.Error(err))
	}
	logging.Info("tide stopped")
	return nil
}

// configChanged applies a reloaded config file: log level changes take
// effect at once, a new download path is persisted and triggers a rebuild.
func configChanged(ctx context.Context, exp *explorer.Explorer) func(old, updated *config.Config) {
	return func(old, updated *config.Config) {
		if updated.Log.Level != old.Log.Level {
			logging.SetLevel(updated.Log.Level)
			logging.Info("log level changed", zap.String("level", updated.Log.Level))
		}
		if updated.DownloadPath == old.DownloadPath {
			return
		}
		if err := exp.SetDownloadPath(ctx, updated.DownloadPath); err != nil {
			logging.Error("persist download path", zap.Error(err))
		}
		if err := exp.Refresh(ctx, explorer.TriggerAuto); err != nil && !errors.Is(err, explorer.ErrUnauthenticated) {
			logging.Warn("refresh after config change", zap.Error(err))
		}
	}
}
