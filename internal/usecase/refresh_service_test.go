package usecase

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlab/pbp-refresh/internal/domain/play"
	"github.com/gridironlab/pbp-refresh/internal/domain/refreshlog"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/runlock"
	"github.com/gridironlab/pbp-refresh/internal/storage"
)

type fakeFetcher struct {
	results []play.FetchResult
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, gameIDs []string) ([]play.FetchResult, error) {
	f.calls++
	return f.results, f.err
}

type refreshFixture struct {
	svc     *RefreshService
	layout  storage.Layout
	guard   *runlock.Guard
	fetcher *fakeFetcher
	sink    *storage.LogSink
}

func newRefreshFixture(t *testing.T, fetcher *fakeFetcher) *refreshFixture {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	require.NoError(t, layout.EnsureDirs())

	logger := logging.NewNop()
	guard := runlock.NewGuard(layout.LockPath(), time.Hour, logger)
	stateStore := storage.NewGameStateStore(layout.GameStatePath(2025))
	freeze := NewFreezeService(stateStore, 2025, time.Hour, logger)
	gameSet := NewGameSetService(nil, layout)
	sink := storage.NewLogSink(layout.LogPath(), layout.StatusPath(), logger)

	svc := NewRefreshService(guard, gameSet, freeze, fetcher, nil, layout, sink, nil, logger)
	return &refreshFixture{svc: svc, layout: layout, guard: guard, fetcher: fetcher, sink: sink}
}

func tdResult(gameID string, playID int) play.FetchResult {
	td := 1
	return play.FetchResult{
		GameID:    gameID,
		Rows:      []play.RawRow{{GameID: gameID, PlayID: playID, Desc: "TOUCHDOWN.", Touchdown: &td}},
		MaxPlayID: playID,
	}
}

// Empty store, three fetched rows, two of them scoring. The store ends with
// exactly the scoring rows and the attempt record reflects the split.
func TestRefresh_FirstRunPersistsScoringRowsOnly(t *testing.T) {
	td := 1
	made := "made"
	fetcher := &fakeFetcher{results: []play.FetchResult{{
		GameID: "G1",
		Rows: []play.RawRow{
			{GameID: "G1", PlayID: 10, Desc: "TOUCHDOWN.", Touchdown: &td},
			{GameID: "G1", PlayID: 20, Desc: "Field goal is good.", FieldGoalResult: &made},
			{GameID: "G1", PlayID: 30, Desc: "Short gain."},
		},
		MaxPlayID: 30,
	}}}
	fx := newRefreshFixture(t, fetcher)

	record, err := fx.svc.Refresh(context.Background(), RefreshInput{
		Mode: ModeExplicit, Season: 2025, Week: 19, ExplicitIDs: []string{"G1"},
	})
	require.NoError(t, err)

	assert.Equal(t, refreshlog.StatusOK, record.Status)
	assert.Equal(t, 3, record.RowsFetched)
	assert.Equal(t, 2, record.EventsDerived)
	assert.Equal(t, 2, record.NewEvents)
	assert.Equal(t, 0, record.ChangedEvents)
	assert.Equal(t, 2, record.EventsAfter)

	store, err := storage.ReadTable(fx.layout.CumulativePath())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	latest, err := storage.ReadTable(fx.layout.LatestPath())
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Len())

	status, err := fx.sink.LoadStatus()
	require.NoError(t, err)
	require.Equal(t, 1, status.Len())
	assert.Equal(t, refreshlog.StatusOK, status.Rows[0]["status"])
	assert.Equal(t, "2025", status.Rows[0]["season"])
}

// Running the identical fetch twice must not duplicate keys or re-count them
// as new; rows stamped by the run are re-observations.
func TestRefresh_Idempotence(t *testing.T) {
	fetcher := &fakeFetcher{results: []play.FetchResult{tdResult("G1", 10)}}
	fx := newRefreshFixture(t, fetcher)
	ctx := context.Background()
	input := RefreshInput{Mode: ModeExplicit, Season: 2025, Week: 19, ExplicitIDs: []string{"G1"}}

	first, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewEvents)

	second, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewEvents)
	assert.Equal(t, 0, second.ChangedEvents)
	assert.Equal(t, 1, second.UnchangedEvents)
	assert.Equal(t, 1, second.EventsAfter)

	store, err := storage.ReadTable(fx.layout.CumulativePath())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

// A second invocation while the lock is held gets Busy and leaves no
// artifact behind.
func TestRefresh_BusyWritesNothing(t *testing.T) {
	fetcher := &fakeFetcher{results: []play.FetchResult{tdResult("G1", 10)}}
	fx := newRefreshFixture(t, fetcher)

	handle, err := fx.guard.Acquire()
	require.NoError(t, err)
	defer handle.Release()

	_, err = fx.svc.Refresh(context.Background(), RefreshInput{
		Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"},
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, fetcher.calls)

	for _, path := range []string{fx.layout.CumulativePath(), fx.layout.LatestPath(), fx.layout.LogPath(), fx.layout.StatusPath()} {
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "unexpected artifact at %s", path)
	}
}

func TestRefresh_ReleasesLockAfterRun(t *testing.T) {
	fetcher := &fakeFetcher{results: []play.FetchResult{tdResult("G1", 10)}}
	fx := newRefreshFixture(t, fetcher)
	ctx := context.Background()
	input := RefreshInput{Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"}}

	_, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)

	_, err = fx.svc.Refresh(ctx, input)
	require.NoError(t, err, "lock must be released on every exit path")
}

// Transport failure aborts the fetch but still writes a zero-count attempt
// record, releases the lock, and surfaces the failure class.
func TestRefresh_FetchFailureStillRecordsAttempt(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream timeout")}
	fx := newRefreshFixture(t, fetcher)

	record, err := fx.svc.Refresh(context.Background(), RefreshInput{
		Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"},
	})
	assert.ErrorIs(t, err, ErrFetchFailure)
	assert.Equal(t, refreshlog.StatusFetchFailure, record.Status)
	assert.Equal(t, 0, record.RowsFetched)

	status, err := fx.sink.LoadStatus()
	require.NoError(t, err)
	require.Equal(t, 1, status.Len())
	assert.Equal(t, refreshlog.StatusFetchFailure, status.Rows[0]["status"])
	assert.Equal(t, "0", status.Rows[0]["rows_fetched"])

	_, statErr := os.Stat(fx.layout.CumulativePath())
	assert.True(t, os.IsNotExist(statErr), "fetch failure must not touch the store")
}

// An empty feed response never clobbers a non-empty store.
func TestRefresh_EmptyFetchDoesNotClobberStore(t *testing.T) {
	fetcher := &fakeFetcher{results: []play.FetchResult{tdResult("G1", 10)}}
	fx := newRefreshFixture(t, fetcher)
	ctx := context.Background()
	input := RefreshInput{Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"}}

	_, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)

	fetcher.results = []play.FetchResult{{GameID: "G1", NotFound: true}}
	record, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, refreshlog.StatusNoData, record.Status)
	assert.Equal(t, "no_live_pbp_available_yet", record.Detail)
	assert.Equal(t, 1, record.EventsAfter)

	store, err := storage.ReadTable(fx.layout.CumulativePath())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

// A game the feed marks final is frozen and excluded from the next run's
// eligible set.
func TestRefresh_FinalGameExcludedNextRun(t *testing.T) {
	final := tdResult("G1", 10)
	final.IsFinal = true
	fetcher := &fakeFetcher{results: []play.FetchResult{final}}
	fx := newRefreshFixture(t, fetcher)
	ctx := context.Background()
	input := RefreshInput{Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"}}

	record, err := fx.svc.Refresh(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 1, record.GamesFrozen)

	record, err = fx.svc.Refresh(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, refreshlog.StatusSkipped, record.Status)
	assert.Equal(t, 1, record.GamesRequested)
	assert.Equal(t, 0, record.GamesEligible)
	assert.Equal(t, 1, fetcher.calls, "frozen game must not be fetched again")
}

// Rows missing their merge key are dropped and counted; the rest of the batch
// still lands.
func TestRefresh_KeylessRowsDroppedWithoutAbort(t *testing.T) {
	td := 1
	fetcher := &fakeFetcher{results: []play.FetchResult{{
		GameID: "G1",
		Rows: []play.RawRow{
			{GameID: "G1", PlayID: 10, Desc: "TOUCHDOWN.", Touchdown: &td},
			{GameID: "G1", PlayID: 0, Desc: "TOUCHDOWN.", Touchdown: &td},
			{GameID: "", PlayID: 20, Desc: "TOUCHDOWN.", Touchdown: &td},
		},
		MaxPlayID: 10,
	}}}
	fx := newRefreshFixture(t, fetcher)

	record, err := fx.svc.Refresh(context.Background(), RefreshInput{
		Mode: ModeExplicit, Season: 2025, ExplicitIDs: []string{"G1"},
	})
	require.NoError(t, err)

	assert.Equal(t, refreshlog.StatusOK, record.Status)
	assert.Equal(t, 3, record.RowsFetched)
	assert.Equal(t, 1, record.EventsDerived)

	store, err := storage.ReadTable(fx.layout.CumulativePath())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestRefresh_ResolutionErrorAbortsBeforeFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	fx := newRefreshFixture(t, fetcher)

	_, err := fx.svc.Refresh(context.Background(), RefreshInput{Mode: ModePlayoffs, Season: 2025})
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, 0, fetcher.calls)

	_, statErr := os.Stat(fx.layout.StatusPath())
	assert.True(t, os.IsNotExist(statErr))
}
