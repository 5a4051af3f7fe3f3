package usecase

import (
	"context"
	"fmt"

	"github.com/gridironlab/pbp-refresh/internal/domain/roster"
	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
	"github.com/gridironlab/pbp-refresh/internal/storage"
)

// RosterProvider fetches the season roster from the upstream data release.
type RosterProvider interface {
	Rosters(ctx context.Context, season int) ([]roster.Row, error)
}

// PositionsService builds the per-season position table the downstream
// scoring aggregation reads. The table is built at most once per season and
// never regenerated once present.
type PositionsService struct {
	rosters RosterProvider
	layout  storage.Layout
	logger  *logging.Logger
}

func NewPositionsService(rosters RosterProvider, layout storage.Layout, logger *logging.Logger) *PositionsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PositionsService{rosters: rosters, layout: layout, logger: logger}
}

func (s *PositionsService) Ensure(ctx context.Context, season int) error {
	ctx, span := startUsecaseSpan(ctx, "PositionsService.Ensure")
	defer span.End()

	path := s.layout.PositionsPath(season)
	if storage.PositionsExist(path) {
		return nil
	}
	if s.rosters == nil {
		return fmt.Errorf("%w: roster provider not configured", ErrDependencyUnavailable)
	}

	rows, err := s.rosters.Rosters(ctx, season)
	if err != nil {
		return fmt.Errorf("%w: load rosters for %d: %v", ErrDependencyUnavailable, season, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: roster release for %d has no rows", ErrDependencyUnavailable, season)
	}

	if err := storage.WritePositions(path, rows); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "position table built", "season", season, "players", len(rows))
	return nil
}
