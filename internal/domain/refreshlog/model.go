// Package refreshlog holds the per-run attempt record appended to the refresh
// log and mirrored into the latest-status file.
package refreshlog

import (
	"strconv"
	"strings"

	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

const (
	StatusOK           = "ok"
	StatusNoData       = "no_data"
	StatusFetchFailure = "fetch_failure"
	StatusSkipped      = "skipped"
)

// Columns is the log schema in on-disk order. Adding a column here rotates
// older log files aside rather than corrupting them.
var Columns = []string{
	"refreshed_at",
	"season",
	"week",
	"game_ids",
	"games_requested",
	"games_eligible",
	"rows_fetched",
	"events_derived",
	"events_before",
	"events_after",
	"new_events",
	"unchanged_events",
	"changed_events",
	"overwritten_keys",
	"new_games",
	"games_frozen",
	"status",
	"detail",
	"fetch_ms",
	"classify_ms",
	"merge_ms",
	"write_ms",
	"total_ms",
}

// AttemptRecord summarizes one refresh invocation, successful or not.
type AttemptRecord struct {
	RefreshedAt string
	Season      int
	Week        int
	GameIDs     []string

	GamesRequested int
	GamesEligible  int
	RowsFetched    int
	EventsDerived  int

	EventsBefore    int
	EventsAfter     int
	NewEvents       int
	UnchangedEvents int
	ChangedEvents   int
	OverwrittenKeys int

	NewGames    int
	GamesFrozen int

	Status string
	Detail string

	FetchMs    int64
	ClassifyMs int64
	MergeMs    int64
	WriteMs    int64
	TotalMs    int64
}

func (r AttemptRecord) Record() tabular.Record {
	return tabular.Record{
		"refreshed_at":     r.RefreshedAt,
		"season":           strconv.Itoa(r.Season),
		"week":             strconv.Itoa(r.Week),
		"game_ids":         strings.Join(r.GameIDs, "|"),
		"games_requested":  strconv.Itoa(r.GamesRequested),
		"games_eligible":   strconv.Itoa(r.GamesEligible),
		"rows_fetched":     strconv.Itoa(r.RowsFetched),
		"events_derived":   strconv.Itoa(r.EventsDerived),
		"events_before":    strconv.Itoa(r.EventsBefore),
		"events_after":     strconv.Itoa(r.EventsAfter),
		"new_events":       strconv.Itoa(r.NewEvents),
		"unchanged_events": strconv.Itoa(r.UnchangedEvents),
		"changed_events":   strconv.Itoa(r.ChangedEvents),
		"overwritten_keys": strconv.Itoa(r.OverwrittenKeys),
		"new_games":        strconv.Itoa(r.NewGames),
		"games_frozen":     strconv.Itoa(r.GamesFrozen),
		"status":           r.Status,
		"detail":           r.Detail,
		"fetch_ms":         strconv.FormatInt(r.FetchMs, 10),
		"classify_ms":      strconv.FormatInt(r.ClassifyMs, 10),
		"merge_ms":         strconv.FormatInt(r.MergeMs, 10),
		"write_ms":         strconv.FormatInt(r.WriteMs, 10),
		"total_ms":         strconv.FormatInt(r.TotalMs, 10),
	}
}
