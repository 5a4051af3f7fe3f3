package usecase

import (
	"context"
	"time"

	"github.com/gridironlab/pbp-refresh/internal/domain/game"
	"github.com/gridironlab/pbp-refresh/internal/domain/play"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/storage"
)

// inactiveMinStreak is how many consecutive no-advance runs a game needs
// before the inactivity window is even considered.
const inactiveMinStreak = 2

// FreezeService owns the durable per-game refresh state. A game freezes when
// the feed marks it final, or when play-by-play stops advancing for the
// configured window; frozen games never re-enter the fetch set.
type FreezeService struct {
	store          *storage.GameStateStore
	season         int
	inactiveWindow time.Duration
	logger         *logging.Logger
	now            func() time.Time
}

type FreezeUpdateSummary struct {
	NewGames    int
	FrozenNow   int
	AdvancedAny bool
}

func NewFreezeService(store *storage.GameStateStore, season int, inactiveWindow time.Duration, logger *logging.Logger) *FreezeService {
	if inactiveWindow <= 0 {
		inactiveWindow = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FreezeService{
		store:          store,
		season:         season,
		inactiveWindow: inactiveWindow,
		logger:         logger,
		now:            time.Now,
	}
}

// FrozenSet returns the ids of games already frozen by prior runs.
func (s *FreezeService) FrozenSet(ctx context.Context) (map[string]bool, error) {
	_, span := startUsecaseSpan(ctx, "FreezeService.FrozenSet")
	defer span.End()

	states, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	frozen := make(map[string]bool)
	for _, st := range states {
		if st.IsFrozen {
			frozen[st.GameID] = true
		}
	}
	return frozen, nil
}

// Update folds one run's fetch results into the state table and persists it
// atomically. Games the feed marked final freeze immediately; games with no
// play-id advance across repeated runs freeze once the inactivity window
// elapses since their last advance.
func (s *FreezeService) Update(ctx context.Context, results []play.FetchResult) (FreezeUpdateSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "FreezeService.Update")
	defer span.End()
	_ = ctx

	states, err := s.store.Load()
	if err != nil {
		return FreezeUpdateSummary{}, err
	}

	index := make(map[string]int, len(states))
	for i, st := range states {
		index[st.GameID] = i
	}

	var summary FreezeUpdateSummary
	now := s.now()

	for _, result := range results {
		i, ok := index[result.GameID]
		if !ok {
			states = append(states, game.State{Season: s.season, GameID: result.GameID})
			i = len(states) - 1
			index[result.GameID] = i
			summary.NewGames++
		}
		st := &states[i]
		st.Season = s.season

		if result.MaxPlayID > st.LastMaxPlayID {
			summary.AdvancedAny = true
		}
		st.RecordAttempt(now)
		st.RecordSuccess(now, result.MaxPlayID)

		if st.IsFrozen {
			continue
		}
		switch {
		case result.IsFinal:
			st.Freeze(game.FreezeReasonFinal)
			summary.FrozenNow++
			s.logger.Info("game frozen", "game_id", st.GameID, "reason", st.FreezeReason)
		case st.InactiveSince(now, s.inactiveWindow, inactiveMinStreak):
			st.Freeze(game.FreezeReasonInactive)
			summary.FrozenNow++
			s.logger.Info("game frozen", "game_id", st.GameID, "reason", st.FreezeReason)
		}
	}

	if err := s.store.Save(states); err != nil {
		return FreezeUpdateSummary{}, err
	}
	return summary, nil
}

// RecordFailedAttempt stamps an attempt for games whose fetch failed so the
// state table still shows the run happened. Streaks and freeze decisions are
// untouched; a transport failure says nothing about game progress.
func (s *FreezeService) RecordFailedAttempt(ctx context.Context, gameIDs []string) error {
	_, span := startUsecaseSpan(ctx, "FreezeService.RecordFailedAttempt")
	defer span.End()

	if len(gameIDs) == 0 {
		return nil
	}
	states, err := s.store.Load()
	if err != nil {
		return err
	}
	index := make(map[string]int, len(states))
	for i, st := range states {
		index[st.GameID] = i
	}

	now := s.now()
	for _, id := range gameIDs {
		i, ok := index[id]
		if !ok {
			states = append(states, game.State{Season: s.season, GameID: id})
			i = len(states) - 1
			index[id] = i
		}
		states[i].RecordAttempt(now)
	}
	return s.store.Save(states)
}
