package storage

import (
	"fmt"
	"os"
	"sort"

	"github.com/gridironlab/pbp-refresh/internal/domain/roster"
	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

var positionColumns = []string{"player_id", "position_bucket"}

// PositionsExist reports whether the per-season position table has been built.
func PositionsExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WritePositions builds the position table from roster rows, one row per
// distinct player id, and writes it atomically. Players without an id are
// skipped.
func WritePositions(path string, rows []roster.Row) error {
	seen := make(map[string]bool, len(rows))
	table := tabular.New(positionColumns...)
	for _, r := range rows {
		if r.GsisID == "" || seen[r.GsisID] {
			continue
		}
		seen[r.GsisID] = true
		table.Append(tabular.Record{
			"player_id":       r.GsisID,
			"position_bucket": roster.Bucket(r.Position),
		})
	}
	return WriteTableAtomic(path, table)
}

// LoadPositions reads the position table into a player-id keyed map.
func LoadPositions(path string) (map[string]string, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, table.Len())
	for _, row := range table.Rows {
		if id := row["player_id"]; id != "" {
			out[id] = row["position_bucket"]
		}
	}
	return out, nil
}

// LoadPlayoffGameIDs reads the operator-maintained playoff game list. The
// file must carry a game_id column; a missing file yields an empty list so
// the pipeline can report "nothing to refresh" instead of failing.
func LoadPlayoffGameIDs(path string) ([]string, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 && len(table.Columns) == 0 {
		return nil, nil
	}
	if !table.HasColumn("game_id") {
		return nil, fmt.Errorf("%s must contain a game_id column", path)
	}

	seen := make(map[string]bool, table.Len())
	ids := make([]string, 0, table.Len())
	for _, row := range table.Rows {
		id := row["game_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
