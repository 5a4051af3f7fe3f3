package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlab/pbp-refresh/internal/domain/refreshlog"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
	"github.com/gridironlab/pbp-refresh/internal/usecase"
)

const testJobToken = "job-token"

type fakeRunner struct {
	input  usecase.RefreshInput
	record refreshlog.AttemptRecord
	err    error
	calls  int
}

func (f *fakeRunner) Refresh(ctx context.Context, input usecase.RefreshInput) (refreshlog.AttemptRecord, error) {
	f.calls++
	f.input = input
	return f.record, f.err
}

type fakeStatus struct {
	table *tabular.Table
	err   error
}

func (f *fakeStatus) LoadStatus() (*tabular.Table, error) {
	if f.table == nil && f.err == nil {
		return tabular.New(refreshlog.Columns...), nil
	}
	return f.table, f.err
}

func newTestRouter(runner *fakeRunner, status *fakeStatus) http.Handler {
	handler := NewHandler(runner, status, RefreshDefaults{Season: 2025, Mode: "playoffs"}, logging.NewNop())
	return NewRouter(handler, logging.NewNop(), testJobToken)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) googleResponseEnvelope {
	t.Helper()
	var envelope googleResponseEnvelope
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, &fakeStatus{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Nil(t, envelope.Error)
}

func TestRunRefreshJob(t *testing.T) {
	runner := &fakeRunner{record: refreshlog.AttemptRecord{
		RefreshedAt: "2026-01-11T18:00:00Z",
		Season:      2025,
		Status:      refreshlog.StatusOK,
		NewEvents:   3,
	}}
	router := newTestRouter(runner, &fakeStatus{})

	body := strings.NewReader(`{"mode":"explicit","game_ids":["2025_19_PIT_BUF"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", body)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, usecase.ModeExplicit, runner.input.Mode)
	assert.Equal(t, []string{"2025_19_PIT_BUF"}, runner.input.ExplicitIDs)
	assert.Equal(t, 2025, runner.input.Season, "season falls back to the configured default")
}

func TestRunRefreshJob_EmptyBodyUsesDefaults(t *testing.T) {
	runner := &fakeRunner{record: refreshlog.AttemptRecord{Status: refreshlog.StatusSkipped}}
	router := newTestRouter(runner, &fakeStatus{})

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", nil)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, usecase.ModePlayoffs, runner.input.Mode)
	assert.Equal(t, 2025, runner.input.Season)
}

func TestRunRefreshJob_InvalidMode(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner, &fakeStatus{})

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", strings.NewReader(`{"mode":"everything"}`))
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestRunRefreshJob_BusyMapsToConflict(t *testing.T) {
	runner := &fakeRunner{err: usecase.ErrBusy}
	router := newTestRouter(runner, &fakeStatus{})

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", nil)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ABORTED", envelope.Error.Status)
}

func TestRunRefreshJob_RejectsMissingToken(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner, &fakeStatus{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestRunRefreshJob_UnconfiguredTokenIsUnavailable(t *testing.T) {
	handler := NewHandler(&fakeRunner{}, &fakeStatus{}, RefreshDefaults{}, logging.NewNop())
	router := NewRouter(handler, logging.NewNop(), "")

	req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/refresh", nil)
	req.Header.Set("X-Internal-Job-Token", "anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRefreshStatus_NoRunsYet(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, &fakeStatus{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/refresh/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRefreshStatus(t *testing.T) {
	status := tabular.New(refreshlog.Columns...)
	status.Append(refreshlog.AttemptRecord{
		RefreshedAt: "2026-01-11T18:00:00Z",
		Season:      2025,
		Status:      refreshlog.StatusOK,
	}.Record())
	router := newTestRouter(&fakeRunner{}, &fakeStatus{table: status})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/refresh/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "2026-01-11T18:00:00Z", data["refreshed_at"])
}
