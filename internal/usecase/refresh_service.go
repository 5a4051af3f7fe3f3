package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gridironlab/pbp-refresh/internal/domain/play"
	"github.com/gridironlab/pbp-refresh/internal/domain/rawdata"
	"github.com/gridironlab/pbp-refresh/internal/domain/refreshlog"
	"github.com/gridironlab/pbp-refresh/internal/domain/scoring"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/platform/runlock"
	"github.com/gridironlab/pbp-refresh/internal/storage"
)

// EventFetcher pulls raw play rows for a set of games. An error means
// transport-level failure; "no data yet" for a game is a normal result.
type EventFetcher interface {
	Fetch(ctx context.Context, gameIDs []string) ([]play.FetchResult, error)
}

// PositionProvider lazily materializes the per-season position table.
type PositionProvider interface {
	Ensure(ctx context.Context, season int) error
}

type RefreshInput struct {
	Mode        ResolveMode
	Season      int
	Week        int
	ExplicitIDs []string
}

// RefreshService runs one end-to-end refresh invocation: lock, resolve,
// fetch, classify, merge, freeze, persist, log.
type RefreshService struct {
	guard     *runlock.Guard
	gameSet   *GameSetService
	freeze    *FreezeService
	fetcher   EventFetcher
	positions PositionProvider
	layout    storage.Layout
	sink      *storage.LogSink
	archive   rawdata.Repository
	logger    *logging.Logger
	now       func() time.Time
}

func NewRefreshService(
	guard *runlock.Guard,
	gameSet *GameSetService,
	freeze *FreezeService,
	fetcher EventFetcher,
	positions PositionProvider,
	layout storage.Layout,
	sink *storage.LogSink,
	archive rawdata.Repository,
	logger *logging.Logger,
) *RefreshService {
	if logger == nil {
		logger = logging.Default()
	}
	return &RefreshService{
		guard:     guard,
		gameSet:   gameSet,
		freeze:    freeze,
		fetcher:   fetcher,
		positions: positions,
		layout:    layout,
		sink:      sink,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh executes one invocation. A concurrent run yields ErrBusy with no
// artifacts touched. Resolution and configuration errors abort before any
// fetch or write. A transport failure still records a zero-count attempt so
// the status artifact explains why data is stale.
func (s *RefreshService) Refresh(ctx context.Context, input RefreshInput) (refreshlog.AttemptRecord, error) {
	ctx, span := startUsecaseSpan(ctx, "RefreshService.Refresh")
	defer span.End()

	started := s.now()
	refreshedAt := started.UTC().Truncate(time.Second).Format(time.RFC3339)

	handle, err := s.guard.Acquire()
	if err != nil {
		if errors.Is(err, runlock.ErrBusy) {
			return refreshlog.AttemptRecord{}, fmt.Errorf("%w", ErrBusy)
		}
		return refreshlog.AttemptRecord{}, err
	}
	defer handle.Release()

	if s.positions != nil {
		if err := s.positions.Ensure(ctx, input.Season); err != nil {
			s.logger.WarnContext(ctx, "position table build failed, continuing", "season", input.Season, "error", err)
		}
	}

	resolved, err := s.gameSet.Resolve(ctx, ResolveGameSetInput{
		Mode:        input.Mode,
		Season:      input.Season,
		Week:        input.Week,
		ExplicitIDs: input.ExplicitIDs,
	})
	if err != nil {
		return refreshlog.AttemptRecord{}, err
	}

	frozen, err := s.freeze.FrozenSet(ctx)
	if err != nil {
		return refreshlog.AttemptRecord{}, err
	}
	eligible := SubtractFrozen(resolved, frozen)

	record := refreshlog.AttemptRecord{
		RefreshedAt:    refreshedAt,
		Season:         input.Season,
		Week:           input.Week,
		GameIDs:        eligible,
		GamesRequested: len(resolved),
		GamesEligible:  len(eligible),
	}

	if len(eligible) == 0 {
		record.Status = refreshlog.StatusSkipped
		record.Detail = "no eligible games, all requested games are frozen or none were requested"
		record.TotalMs = s.sinceMs(started)
		return record, s.sink.Record(record)
	}

	fetchStart := s.now()
	results, err := s.fetcher.Fetch(ctx, eligible)
	record.FetchMs = s.sinceMs(fetchStart)
	if err != nil {
		if stateErr := s.freeze.RecordFailedAttempt(ctx, eligible); stateErr != nil {
			s.logger.ErrorContext(ctx, "state update after fetch failure", "error", stateErr)
		}
		record.Status = refreshlog.StatusFetchFailure
		record.Detail = err.Error()
		record.TotalMs = s.sinceMs(started)
		if sinkErr := s.sink.Record(record); sinkErr != nil {
			return record, sinkErr
		}
		return record, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}

	rows := flattenRows(results)
	record.RowsFetched = len(rows)

	// A row without its merge key cannot be classified or stored safely; it is
	// dropped and counted, never allowed to abort the batch.
	kept := rows[:0]
	dropped := 0
	for _, row := range rows {
		if row.GameID == "" || row.PlayID <= 0 {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	rows = kept
	if dropped > 0 {
		s.logger.WarnContext(ctx, "dropped uninterpretable play rows",
			"count", dropped,
			"error", ErrScheduleDrift,
		)
	}

	// The feed does not carry season or week; stamp them from the run scope
	// so persisted events stay filterable.
	for i := range rows {
		if rows[i].Season == 0 {
			rows[i].Season = input.Season
		}
		if rows[i].Week == 0 {
			rows[i].Week = input.Week
		}
	}

	classifyStart := s.now()
	events := scoring.Classifier{RefreshedAt: refreshedAt}.Classify(rows)
	record.ClassifyMs = s.sinceMs(classifyStart)
	record.EventsDerived = len(events)

	existing, err := storage.ReadTable(s.layout.CumulativePath())
	if err != nil {
		return record, err
	}
	record.EventsBefore = existing.Len()

	freezeSummary, err := s.freeze.Update(ctx, results)
	if err != nil {
		return record, err
	}
	record.NewGames = freezeSummary.NewGames
	record.GamesFrozen = freezeSummary.FrozenNow

	// The feed having nothing while the store holds prior events means the
	// upstream view is temporarily behind; overwriting the store with an
	// empty merge would discard good data.
	if len(rows) == 0 && existing.Len() > 0 {
		record.EventsAfter = existing.Len()
		record.Status = refreshlog.StatusNoData
		record.Detail = "no_live_pbp_available_yet"
		record.TotalMs = s.sinceMs(started)
		return record, s.sink.Record(record)
	}

	mergeStart := s.now()
	incoming := scoring.Table(events)
	merged, metrics := MergeScoringEvents(existing, incoming)
	record.MergeMs = s.sinceMs(mergeStart)

	record.EventsAfter = metrics.Total
	record.NewEvents = metrics.New
	record.UnchangedEvents = metrics.Unchanged
	record.ChangedEvents = metrics.Changed
	record.OverwrittenKeys = metrics.Overwritten

	writeStart := s.now()
	if err := storage.WriteTableAtomic(s.layout.CumulativePath(), merged); err != nil {
		return record, err
	}
	if err := storage.WriteTableAtomic(s.layout.LatestPath(), incoming); err != nil {
		return record, err
	}
	record.WriteMs = s.sinceMs(writeStart)

	s.archivePayloads(ctx, input, results)

	record.Status = refreshlog.StatusOK
	if len(rows) == 0 {
		record.Status = refreshlog.StatusNoData
		record.Detail = "feed returned no plays for any requested game"
	}
	record.TotalMs = s.sinceMs(started)
	if err := s.sink.Record(record); err != nil {
		return record, err
	}

	s.logger.InfoContext(ctx, "refresh complete",
		"games", len(eligible),
		"rows_fetched", record.RowsFetched,
		"events_new", record.NewEvents,
		"events_changed", record.ChangedEvents,
		"games_frozen", record.GamesFrozen,
		"total_ms", record.TotalMs,
	)
	return record, nil
}

// archivePayloads stores raw responses when an archive repository is wired.
// Failures are logged and ignored; the archive is diagnostics, not truth.
func (s *RefreshService) archivePayloads(ctx context.Context, input RefreshInput, results []play.FetchResult) {
	if s.archive == nil {
		return
	}
	items := make([]rawdata.Payload, 0, len(results))
	for _, r := range results {
		if r.RawPayload == "" {
			continue
		}
		sum := sha256.Sum256([]byte(r.RawPayload))
		items = append(items, rawdata.Payload{
			Source:      "gamecenter",
			GameID:      r.GameID,
			EventID:     r.EventID,
			Season:      input.Season,
			Week:        input.Week,
			PayloadJSON: r.RawPayload,
			PayloadHash: hex.EncodeToString(sum[:]),
			FetchedAt:   s.now().UTC(),
		})
	}
	if len(items) == 0 {
		return
	}
	if err := s.archive.UpsertMany(ctx, items); err != nil {
		s.logger.WarnContext(ctx, "raw payload archive failed", "error", err)
	}
}

func (s *RefreshService) sinceMs(from time.Time) int64 {
	return s.now().Sub(from).Milliseconds()
}

func flattenRows(results []play.FetchResult) []play.RawRow {
	var rows []play.RawRow
	for _, r := range results {
		rows = append(rows, r.Rows...)
	}
	return rows
}
