// Package storage owns the on-disk artifacts of the refresh pipeline: the
// cumulative scoring store, the latest-run snapshot, the per-season game
// state, the refresh log and status files, and the run lock.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout derives every artifact path from one root directory. It carries no
// logic beyond path derivation and directory creation.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) processedDir() string { return filepath.Join(l.Root, "processed") }
func (l Layout) configDir() string    { return filepath.Join(l.Root, "config") }

// EnsureDirs creates the processed and config directories.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.processedDir(), l.configDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return nil
}

// CumulativePath is the durable scoring-event store.
func (l Layout) CumulativePath() string {
	return filepath.Join(l.processedDir(), "scoring_plays.csv")
}

// LatestPath holds only the events derived by the most recent refresh.
func (l Layout) LatestPath() string {
	return filepath.Join(l.processedDir(), "scoring_plays_latest.csv")
}

func (l Layout) LogPath() string {
	return filepath.Join(l.processedDir(), "refresh_log.csv")
}

func (l Layout) StatusPath() string {
	return filepath.Join(l.processedDir(), "refresh_status.csv")
}

func (l Layout) LockPath() string {
	return filepath.Join(l.processedDir(), "refresh.lock")
}

func (l Layout) GameStatePath(season int) string {
	return filepath.Join(l.processedDir(), fmt.Sprintf("game_state_%d.csv", season))
}

func (l Layout) PositionsPath(season int) string {
	return filepath.Join(l.processedDir(), fmt.Sprintf("player_positions_%d.csv", season))
}

// PlayoffGameIDsPath is the operator-maintained list of playoff game ids.
func (l Layout) PlayoffGameIDsPath(season int) string {
	return filepath.Join(l.configDir(), fmt.Sprintf("playoff_game_ids_%d.csv", season))
}
