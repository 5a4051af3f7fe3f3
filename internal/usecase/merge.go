package usecase

import (
	"sort"
	"strconv"

	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

// MergeMetrics summarizes one latest-wins merge into the cumulative store.
type MergeMetrics struct {
	New         int
	Unchanged   int
	Changed     int
	Overwritten int
	Total       int
}

// MergeScoringEvents unions existing and incoming event tables keyed by
// (game_id, play_id). For keys present on both sides the row with the latest
// refreshed_at wins; on a timestamp tie the incoming row wins, since the new
// fetch is at least as fresh a read. Keys absent from incoming are never
// deleted. Schemas are reconciled to their union before any key comparison.
func MergeScoringEvents(existing, incoming *tabular.Table) (*tabular.Table, MergeMetrics) {
	existing = existing.Clone()
	incoming = incoming.Clone()
	tabular.AlignSchemas(existing, incoming)

	merged := tabular.New(existing.Columns...)
	merged.Rows = append(merged.Rows, existing.Rows...)

	index := make(map[string]int, len(existing.Rows))
	for i, row := range existing.Rows {
		index[mergeKey(row)] = i
	}

	var metrics MergeMetrics
	counted := make(map[string]bool, len(incoming.Rows))

	for _, row := range incoming.Rows {
		key := mergeKey(row)
		i, seen := index[key]
		if !seen {
			index[key] = len(merged.Rows)
			merged.Rows = append(merged.Rows, row)
			if !counted[key] {
				counted[key] = true
				metrics.New++
			}
			continue
		}

		current := merged.Rows[i]
		if !counted[key] {
			counted[key] = true
			if rowsEqual(current, row, merged.Columns) {
				metrics.Unchanged++
			} else {
				metrics.Changed++
			}
		}

		if row["refreshed_at"] >= current["refreshed_at"] {
			merged.Rows[i] = row
			metrics.Overwritten++
		}
	}

	merged.Rows = sortByKey(merged.Rows)
	metrics.Total = len(merged.Rows)
	return merged, metrics
}

func mergeKey(row tabular.Record) string {
	return row["game_id"] + "\x00" + row["play_id"]
}

// rowsEqual compares every persisted field except refreshed_at, which moves
// on every re-observation and says nothing about upstream content.
func rowsEqual(a, b tabular.Record, columns []string) bool {
	for _, col := range columns {
		if col == "refreshed_at" {
			continue
		}
		if a[col] != b[col] {
			return false
		}
	}
	return true
}

func sortByKey(rows []tabular.Record) []tabular.Record {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i]["game_id"] != rows[j]["game_id"] {
			return rows[i]["game_id"] < rows[j]["game_id"]
		}
		pi, _ := strconv.Atoi(rows[i]["play_id"])
		pj, _ := strconv.Atoi(rows[j]["play_id"])
		return pi < pj
	})
	return rows
}
