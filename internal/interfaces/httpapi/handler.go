package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/gridironlab/pbp-refresh/internal/domain/refreshlog"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
	"github.com/gridironlab/pbp-refresh/internal/usecase"
)

// RefreshRunner executes one refresh invocation.
type RefreshRunner interface {
	Refresh(ctx context.Context, input usecase.RefreshInput) (refreshlog.AttemptRecord, error)
}

// StatusReader loads the most recent refresh attempt record.
type StatusReader interface {
	LoadStatus() (*tabular.Table, error)
}

// RefreshDefaults fills request fields the caller omitted; they come from the
// process configuration.
type RefreshDefaults struct {
	Season int
	Week   int
	Mode   string
}

type Handler struct {
	refresher RefreshRunner
	status    StatusReader
	defaults  RefreshDefaults
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(refresher RefreshRunner, status StatusReader, defaults RefreshDefaults, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		refresher: refresher,
		status:    status,
		defaults:  defaults,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetRefreshStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRefreshStatus")
	defer span.End()

	table, err := h.status.LoadStatus()
	if err != nil {
		h.logger.ErrorContext(ctx, "load refresh status failed", "error", err)
		writeError(ctx, w, err)
		return
	}
	if table.IsEmpty() {
		writeError(ctx, w, fmt.Errorf("%w: no refresh has completed yet", usecase.ErrNotFound))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, statusToDTO(table.Rows[0]))
}

type refreshJobRequest struct {
	Season  int      `json:"season" validate:"omitempty,gte=1999"`
	Week    int      `json:"week" validate:"omitempty,gte=1,lte=22"`
	Mode    string   `json:"mode" validate:"omitempty,oneof=explicit week playoffs"`
	GameIDs []string `json:"game_ids" validate:"omitempty,dive,required"`
}

type refreshJobResponse struct {
	RefreshedAt     string   `json:"refreshedAt"`
	Season          int      `json:"season"`
	Week            int      `json:"week,omitempty"`
	GameIDs         []string `json:"gameIds"`
	GamesRequested  int      `json:"gamesRequested"`
	GamesEligible   int      `json:"gamesEligible"`
	RowsFetched     int      `json:"rowsFetched"`
	EventsDerived   int      `json:"eventsDerived"`
	EventsBefore    int      `json:"eventsBefore"`
	EventsAfter     int      `json:"eventsAfter"`
	NewEvents       int      `json:"newEvents"`
	UnchangedEvents int      `json:"unchangedEvents"`
	ChangedEvents   int      `json:"changedEvents"`
	OverwrittenKeys int      `json:"overwrittenKeys"`
	NewGames        int      `json:"newGames"`
	GamesFrozen     int      `json:"gamesFrozen"`
	Status          string   `json:"status"`
	Detail          string   `json:"detail,omitempty"`
	TotalMs         int64    `json:"totalMs"`
}

func (h *Handler) RunRefreshJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshJob")
	defer span.End()

	req, err := decodeRefreshJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	if req.Season == 0 {
		req.Season = h.defaults.Season
	}
	if req.Week == 0 {
		req.Week = h.defaults.Week
	}
	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = h.defaults.Mode
	}

	record, err := h.refresher.Refresh(ctx, usecase.RefreshInput{
		Mode:        usecase.ResolveMode(req.Mode),
		Season:      req.Season,
		Week:        req.Week,
		ExplicitIDs: req.GameIDs,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "refresh job failed",
			"mode", req.Mode,
			"season", req.Season,
			"week", req.Week,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, attemptToDTO(record))
}

func decodeRefreshJobRequest(r *http.Request) (refreshJobRequest, error) {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req refreshJobRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return refreshJobRequest{}, nil
		}
		return refreshJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}

func attemptToDTO(record refreshlog.AttemptRecord) refreshJobResponse {
	return refreshJobResponse{
		RefreshedAt:     record.RefreshedAt,
		Season:          record.Season,
		Week:            record.Week,
		GameIDs:         record.GameIDs,
		GamesRequested:  record.GamesRequested,
		GamesEligible:   record.GamesEligible,
		RowsFetched:     record.RowsFetched,
		EventsDerived:   record.EventsDerived,
		EventsBefore:    record.EventsBefore,
		EventsAfter:     record.EventsAfter,
		NewEvents:       record.NewEvents,
		UnchangedEvents: record.UnchangedEvents,
		ChangedEvents:   record.ChangedEvents,
		OverwrittenKeys: record.OverwrittenKeys,
		NewGames:        record.NewGames,
		GamesFrozen:     record.GamesFrozen,
		Status:          record.Status,
		Detail:          record.Detail,
		TotalMs:         record.TotalMs,
	}
}

func statusToDTO(row tabular.Record) map[string]string {
	out := make(map[string]string, len(refreshlog.Columns))
	for _, col := range refreshlog.Columns {
		out[col] = row[col]
	}
	return out
}
