package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

func eventTable(rows ...tabular.Record) *tabular.Table {
	table := tabular.New("refreshed_at", "game_id", "play_id", "desc", "is_td", "is_safety")
	table.Append(rows...)
	return table
}

func TestMerge_NewKeysAreAdded(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "is_td": "true"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "25", "is_td": "true"},
	)

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 1, metrics.New)
	assert.Equal(t, 0, metrics.Changed)
	assert.Equal(t, 0, metrics.Unchanged)
	assert.Equal(t, 2, metrics.Total)
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "10", merged.Rows[0]["play_id"])
	assert.Equal(t, "25", merged.Rows[1]["play_id"])
}

// Pure re-observation: same keys, same content, later timestamp. The store
// must end byte-identical in content, with re-observations counted as
// unchanged rather than changed.
func TestMerge_ReobservationIsUnchanged(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "desc": "TD run", "is_td": "true"},
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "31", "desc": "FG", "is_td": "false"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "10", "desc": "TD run", "is_td": "true"},
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "31", "desc": "FG", "is_td": "false"},
	)

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 0, metrics.New)
	assert.Equal(t, 2, metrics.Unchanged)
	assert.Equal(t, 0, metrics.Changed)
	assert.Equal(t, 2, metrics.Total)
	for _, row := range merged.Rows {
		assert.Equal(t, "2026-01-11T18:05:00Z", row["refreshed_at"])
	}
}

// Upstream corrected a play: same key, later timestamp, an extra flag set.
// The corrected row wins and the run reports changed=1.
func TestMerge_UpstreamCorrectionWins(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "is_td": "true", "is_safety": "false"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "10", "is_td": "true", "is_safety": "true"},
	)

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 0, metrics.New)
	assert.Equal(t, 1, metrics.Changed)
	assert.Equal(t, 1, metrics.Overwritten)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, "true", merged.Rows[0]["is_td"])
	assert.Equal(t, "true", merged.Rows[0]["is_safety"])
}

func TestMerge_OlderIncomingDoesNotClobber(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:10:00Z", "game_id": "G1", "play_id": "10", "desc": "corrected"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "desc": "stale"},
	)

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 0, metrics.Overwritten)
	assert.Equal(t, "corrected", merged.Rows[0]["desc"])
	assert.Equal(t, "2026-01-11T18:10:00Z", merged.Rows[0]["refreshed_at"])
}

func TestMerge_TimestampTieGoesToIncoming(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "desc": "old read"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "desc": "new read"},
	)

	merged, _ := MergeScoringEvents(existing, incoming)

	assert.Equal(t, "new read", merged.Rows[0]["desc"])
}

func TestMerge_NeverDeletesMissingKeys(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10"},
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G2", "play_id": "7"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "10"},
	)

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 2, metrics.Total)
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "G2", merged.Rows[1]["game_id"])
}

// Schema drift: incoming carries a column the store predates, and vice
// versa. Both sides must be widened before the key merge so no value lands
// under the wrong column.
func TestMerge_ReconcilesSchemasBeforeMerge(t *testing.T) {
	existing := tabular.New("refreshed_at", "game_id", "play_id", "legacy_note")
	existing.Append(tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "legacy_note": "kept"})

	incoming := tabular.New("refreshed_at", "game_id", "play_id", "kicker_player_id")
	incoming.Append(tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "31", "kicker_player_id": "00-0031"})

	merged, metrics := MergeScoringEvents(existing, incoming)

	assert.Equal(t, 1, metrics.New)
	assert.True(t, merged.HasColumn("legacy_note"))
	assert.True(t, merged.HasColumn("kicker_player_id"))
	assert.Equal(t, "kept", merged.Rows[0]["legacy_note"])
	assert.Equal(t, "", merged.Rows[0]["kicker_player_id"])
	assert.Equal(t, "", merged.Rows[1]["legacy_note"])
	assert.Equal(t, "00-0031", merged.Rows[1]["kicker_player_id"])
}

func TestMerge_SortsByGameThenNumericPlayID(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "t", "game_id": "G2", "play_id": "5"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "t", "game_id": "G1", "play_id": "100"},
		tabular.Record{"refreshed_at": "t", "game_id": "G1", "play_id": "20"},
	)

	merged, _ := MergeScoringEvents(existing, incoming)

	require.Equal(t, 3, merged.Len())
	assert.Equal(t, "20", merged.Rows[0]["play_id"])
	assert.Equal(t, "100", merged.Rows[1]["play_id"])
	assert.Equal(t, "G2", merged.Rows[2]["game_id"])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:00:00Z", "game_id": "G1", "play_id": "10", "desc": "original"},
	)
	incoming := eventTable(
		tabular.Record{"refreshed_at": "2026-01-11T18:05:00Z", "game_id": "G1", "play_id": "10", "desc": "replacement"},
	)

	_, _ = MergeScoringEvents(existing, incoming)

	assert.Equal(t, "original", existing.Rows[0]["desc"])
	assert.Len(t, existing.Columns, 6)
}
