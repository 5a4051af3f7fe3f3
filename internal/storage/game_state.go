package storage

import (
	"strconv"

	"github.com/gridironlab/pbp-refresh/internal/domain/game"
	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

var gameStateColumns = []string{
	"season",
	"game_id",
	"first_seen_at",
	"last_attempt_at",
	"last_success_at",
	"last_max_play_id",
	"last_new_pbp_at",
	"no_new_pbp_streak",
	"is_frozen",
	"freeze_reason",
}

// GameStateStore persists per-game refresh state for one season.
type GameStateStore struct {
	path string
}

func NewGameStateStore(path string) *GameStateStore {
	return &GameStateStore{path: path}
}

// Load reads all known game states, preserving file order. A missing file
// yields an empty slice.
func (s *GameStateStore) Load() ([]game.State, error) {
	table, err := ReadTable(s.path)
	if err != nil {
		return nil, err
	}

	states := make([]game.State, 0, table.Len())
	for _, row := range table.Rows {
		states = append(states, game.State{
			Season:         atoi(row["season"]),
			GameID:         row["game_id"],
			FirstSeenAt:    row["first_seen_at"],
			LastAttemptAt:  row["last_attempt_at"],
			LastSuccessAt:  row["last_success_at"],
			LastMaxPlayID:  atoi(row["last_max_play_id"]),
			LastNewPbpAt:   row["last_new_pbp_at"],
			NoNewPbpStreak: atoi(row["no_new_pbp_streak"]),
			IsFrozen:       row["is_frozen"] == "true",
			FreezeReason:   row["freeze_reason"],
		})
	}
	return states, nil
}

// Save atomically replaces the state file.
func (s *GameStateStore) Save(states []game.State) error {
	table := tabular.New(gameStateColumns...)
	for _, st := range states {
		table.Append(tabular.Record{
			"season":            strconv.Itoa(st.Season),
			"game_id":           st.GameID,
			"first_seen_at":     st.FirstSeenAt,
			"last_attempt_at":   st.LastAttemptAt,
			"last_success_at":   st.LastSuccessAt,
			"last_max_play_id":  strconv.Itoa(st.LastMaxPlayID),
			"last_new_pbp_at":   st.LastNewPbpAt,
			"no_new_pbp_streak": strconv.Itoa(st.NoNewPbpStreak),
			"is_frozen":         strconv.FormatBool(st.IsFrozen),
			"freeze_reason":     st.FreezeReason,
		})
	}
	return WriteTableAtomic(s.path, table)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
