package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gridironlab/pbp-refresh/internal/storage"
)

type ResolveMode string

const (
	ModeExplicit ResolveMode = "explicit"
	ModeWeek     ResolveMode = "week"
	ModePlayoffs ResolveMode = "playoffs"
)

// ScheduleProvider resolves the game ids scheduled for one week.
type ScheduleProvider interface {
	GameIDsForWeek(ctx context.Context, season, week int) ([]string, error)
}

type ResolveGameSetInput struct {
	Mode        ResolveMode
	Season      int
	Week        int
	ExplicitIDs []string
}

// GameSetService decides which games a refresh run targets.
type GameSetService struct {
	schedule ScheduleProvider
	layout   storage.Layout
}

func NewGameSetService(schedule ScheduleProvider, layout storage.Layout) *GameSetService {
	return &GameSetService{schedule: schedule, layout: layout}
}

// Resolve returns the ordered, de-duplicated game set for the run. An empty
// result is a legitimate outcome for week mode; only unreachable collaborators
// and missing configuration are errors.
func (s *GameSetService) Resolve(ctx context.Context, input ResolveGameSetInput) ([]string, error) {
	ctx, span := startUsecaseSpan(ctx, "GameSetService.Resolve")
	defer span.End()

	switch input.Mode {
	case ModeExplicit:
		return dedupeTrimmed(input.ExplicitIDs), nil

	case ModeWeek:
		if s.schedule == nil {
			return nil, fmt.Errorf("%w: schedule provider not configured", ErrDependencyUnavailable)
		}
		ids, err := s.schedule.GameIDsForWeek(ctx, input.Season, input.Week)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule lookup for season %d week %d: %v", ErrResolution, input.Season, input.Week, err)
		}
		return dedupeTrimmed(ids), nil

	case ModePlayoffs:
		path := s.layout.PlayoffGameIDsPath(input.Season)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: playoff game list %s", ErrConfigMissing, path)
			}
			return nil, fmt.Errorf("%w: stat playoff game list: %v", ErrResolution, err)
		}
		ids, err := storage.LoadPlayoffGameIDs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("%w: unknown resolve mode %q", ErrInvalidInput, input.Mode)
	}
}

// SubtractFrozen removes ids the freeze tracker has marked terminal,
// preserving the input order of the rest.
func SubtractFrozen(ids []string, frozen map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !frozen[id] {
			out = append(out, id)
		}
	}
	return out
}

func dedupeTrimmed(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
