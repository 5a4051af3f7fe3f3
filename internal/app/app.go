// Package app wires configuration, clients, services, and the HTTP surface
// into a runnable refresher.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridironlab/pbp-refresh/external/gamecenter"
	"github.com/gridironlab/pbp-refresh/external/nflverse"
	"github.com/gridironlab/pbp-refresh/internal/config"
	"github.com/gridironlab/pbp-refresh/internal/domain/rawdata"
	"github.com/gridironlab/pbp-refresh/internal/infrastructure/repository/postgres"
	"github.com/gridironlab/pbp-refresh/internal/interfaces/httpapi"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/resilience"
	"github.com/gridironlab/pbp-refresh/internal/platform/runlock"
	"github.com/gridironlab/pbp-refresh/internal/storage"
	"github.com/gridironlab/pbp-refresh/internal/usecase"
)

// Application holds the wired components a command needs to run a refresh,
// serve the API, or both.
type Application struct {
	Config  config.Config
	Logger  *logging.Logger
	Refresh *usecase.RefreshService
	Server  *http.Server

	db *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	layout := storage.NewLayout(cfg.DataRoot)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	guard := runlock.NewGuard(layout.LockPath(), cfg.LockStaleAfter, logger)

	schedule := nflverse.NewClient(nflverse.ClientConfig{
		ScheduleURL:    cfg.NflverseScheduleURL,
		RosterTemplate: cfg.NflverseRosterTemplate,
		Timeout:        cfg.NflverseTimeout,
		MaxRetries:     cfg.NflverseMaxRetries,
		Logger:         logger,
	})

	fetcher := gamecenter.NewClient(gamecenter.ClientConfig{
		BaseURL:     cfg.GamecenterBaseURL,
		Timeout:     cfg.GamecenterTimeout,
		MaxRetries:  cfg.GamecenterMaxRetries,
		Concurrency: cfg.GamecenterConcurrency,
		Logger:      logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.GamecenterCircuitEnabled,
			FailureThreshold: cfg.GamecenterCircuitFailureCount,
			OpenTimeout:      cfg.GamecenterCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.GamecenterCircuitHalfOpenMaxReq,
		},
	}, schedule)

	stateStore := storage.NewGameStateStore(layout.GameStatePath(cfg.Season))
	freeze := usecase.NewFreezeService(stateStore, cfg.Season, cfg.InactiveWindow, logger)
	gameSet := usecase.NewGameSetService(schedule, layout)
	positions := usecase.NewPositionsService(schedule, layout, logger)
	sink := storage.NewLogSink(layout.LogPath(), layout.StatusPath(), logger)

	var db *sqlx.DB
	var archive rawdata.Repository
	if cfg.ArchiveEnabled() {
		opened, err := openDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("open archive database: %w", err)
		}
		db = opened
		archive = postgres.NewRawPayloadRepository(db)
		logger.Info("raw payload archive enabled", "db", dbNameFromURL(cfg.DBURL))
	}

	refresh := usecase.NewRefreshService(guard, gameSet, freeze, fetcher, positions, layout, sink, archive, logger)

	handler := httpapi.NewHandler(refresh, sink, httpapi.RefreshDefaults{
		Season: cfg.Season,
		Week:   cfg.Week,
		Mode:   cfg.Mode,
	}, logger)
	router := httpapi.NewRouter(handler, logger, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: maxDuration(cfg.WriteTimeout, cfg.GamecenterTimeout+30*time.Second),
	}

	return &Application{
		Config:  cfg,
		Logger:  logger,
		Refresh: refresh,
		Server:  server,
		db:      db,
	}, nil
}

func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// The refresh job route blocks for the whole run, so the write timeout has to
// cover a full fetch cycle rather than a typical read path.
func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
