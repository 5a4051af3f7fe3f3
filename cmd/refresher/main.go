package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/gridironlab/pbp-refresh/internal/app"
	"github.com/gridironlab/pbp-refresh/internal/config"
	"github.com/gridironlab/pbp-refresh/internal/observability"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	cmd := "once"
	if len(os.Args) > 1 {
		cmd = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	switch cmd {
	case "once":
		runErr = runOnce(ctx, application)
	case "serve":
		runErr = runServer(ctx, application, false)
	case "daemon":
		runErr = runServer(ctx, application, true)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s <once|serve|daemon>\n", filepath.Base(os.Args[0]))
		runErr = fmt.Errorf("unknown command %q", cmd)
	}
	stop()

	if err := application.Close(); err != nil {
		logger.Error("close app", "error", err)
	}
	if pprofSrv != nil {
		if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
			logger.Error("stop pprof", "error", err)
		}
	}
	if err := stopPyroscope(); err != nil {
		logger.Error("stop pyroscope", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := shutdownUptrace(shutdownCtx); err != nil {
		logger.Error("shutdown uptrace", "error", err)
	}
	cancel()

	if runErr != nil {
		logger.Error("refresher exited with error", "error", runErr)
		os.Exit(1)
	}
}

func refreshInput(cfg config.Config) usecase.RefreshInput {
	return usecase.RefreshInput{
		Mode:        usecase.ResolveMode(cfg.Mode),
		Season:      cfg.Season,
		Week:        cfg.Week,
		ExplicitIDs: cfg.GameIDs,
	}
}

func runOnce(ctx context.Context, application *app.Application) error {
	record, err := application.Refresh.Refresh(ctx, refreshInput(application.Config))
	if err != nil {
		return err
	}

	application.Logger.Info("refresh finished",
		"status", record.Status,
		"games_eligible", record.GamesEligible,
		"new_events", record.NewEvents,
		"changed_events", record.ChangedEvents,
		"games_frozen", record.GamesFrozen,
		"total_ms", record.TotalMs,
	)
	return nil
}

// runServer serves the HTTP API and, in daemon mode, also triggers a refresh
// on a fixed interval until the process is signaled.
func runServer(ctx context.Context, application *app.Application, daemon bool) error {
	logger := application.Logger
	srv := application.Server

	var wg conc.WaitGroup
	serverErr := make(chan error, 1)

	wg.Go(func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	})

	if daemon {
		wg.Go(func() {
			runRefreshLoop(ctx, application)
		})
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("graceful shutdown failed", "error", shutdownErr)
	}

	wg.Wait()
	logger.Info("http server stopped")
	return err
}

// runRefreshLoop runs one refresh immediately and then on every tick. A busy
// run means another invocation (likely via the API) is already in flight, so
// the tick is skipped without noise.
func runRefreshLoop(ctx context.Context, application *app.Application) {
	cfg := application.Config
	logger := application.Logger

	ticker := time.NewTicker(cfg.DaemonInterval)
	defer ticker.Stop()

	for {
		record, err := application.Refresh.Refresh(ctx, refreshInput(cfg))
		switch {
		case err == nil:
			logger.Info("scheduled refresh finished",
				"status", record.Status,
				"new_events", record.NewEvents,
				"games_frozen", record.GamesFrozen,
				"total_ms", record.TotalMs,
			)
		case errors.Is(err, usecase.ErrBusy):
			logger.Debug("scheduled refresh skipped, another run in progress")
		default:
			logger.Error("scheduled refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
