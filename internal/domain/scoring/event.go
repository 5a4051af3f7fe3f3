// Package scoring classifies raw play rows into persisted scoring events.
package scoring

import (
	"strconv"

	"github.com/gridironlab/pbp-refresh/internal/platform/tabular"
)

// Columns is the stable persisted schema for scoring events, in on-disk
// order. Readers of older files may see a subset; the merge layer reconciles.
var Columns = []string{
	"refreshed_at",
	"season",
	"week",
	"game_id",
	"game_date",
	"posteam",
	"defteam",
	"qtr",
	"time",
	"drive",
	"play_id",
	"desc",
	"touchdown",
	"field_goal_result",
	"extra_point_result",
	"two_point_conv_result",
	"safety",
	"is_td",
	"is_fg",
	"is_xp",
	"is_2pt",
	"is_safety",
	"pass_touchdown",
	"rush_touchdown",
	"is_td_off",
	"is_td_def",
	"defensive_two_point_conv",
	"is_def_two_pt",
	"play_type",
	"passer_player_id",
	"passer_player_name",
	"receiver_player_id",
	"receiver_player_name",
	"rusher_player_id",
	"rusher_player_name",
	"kicker_player_id",
	"kicker_player_name",
}

// Event is one classified scoring play. The (GameID, PlayID) pair keys the
// cumulative store; RefreshedAt versions re-observations of the same key.
type Event struct {
	RefreshedAt string
	Season      int
	Week        int
	GameID      string
	GameDate    string

	Posteam *string
	Defteam *string
	Qtr     *int
	Time    *string
	Drive   *int
	PlayID  int
	Desc    string

	Touchdown             *int
	FieldGoalResult       *string
	ExtraPointResult      *string
	TwoPointConvResult    *string
	Safety                *int
	DefensiveTwoPointConv *int

	IsTD       bool
	IsFG       bool
	IsXP       bool
	IsTwoPt    bool
	IsSafety   bool
	IsDefTwoPt bool

	PassTouchdown bool
	RushTouchdown bool
	IsTDOffense   bool
	IsTDDefense   bool

	PlayType *string

	PasserPlayerID     *string
	PasserPlayerName   *string
	ReceiverPlayerID   *string
	ReceiverPlayerName *string
	RusherPlayerID     *string
	RusherPlayerName   *string
	KickerPlayerID     *string
	KickerPlayerName   *string
}

func optStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Record projects the event onto the persisted schema. Absent optional fields
// become empty cells, never invented values.
func (e Event) Record() tabular.Record {
	return tabular.Record{
		"refreshed_at":             e.RefreshedAt,
		"season":                   strconv.Itoa(e.Season),
		"week":                     strconv.Itoa(e.Week),
		"game_id":                  e.GameID,
		"game_date":                e.GameDate,
		"posteam":                  optStr(e.Posteam),
		"defteam":                  optStr(e.Defteam),
		"qtr":                      optInt(e.Qtr),
		"time":                     optStr(e.Time),
		"drive":                    optInt(e.Drive),
		"play_id":                  strconv.Itoa(e.PlayID),
		"desc":                     e.Desc,
		"touchdown":                optInt(e.Touchdown),
		"field_goal_result":        optStr(e.FieldGoalResult),
		"extra_point_result":       optStr(e.ExtraPointResult),
		"two_point_conv_result":    optStr(e.TwoPointConvResult),
		"safety":                   optInt(e.Safety),
		"is_td":                    boolCell(e.IsTD),
		"is_fg":                    boolCell(e.IsFG),
		"is_xp":                    boolCell(e.IsXP),
		"is_2pt":                   boolCell(e.IsTwoPt),
		"is_safety":                boolCell(e.IsSafety),
		"pass_touchdown":           boolCell(e.PassTouchdown),
		"rush_touchdown":           boolCell(e.RushTouchdown),
		"is_td_off":                boolCell(e.IsTDOffense),
		"is_td_def":                boolCell(e.IsTDDefense),
		"defensive_two_point_conv": optInt(e.DefensiveTwoPointConv),
		"is_def_two_pt":            boolCell(e.IsDefTwoPt),
		"play_type":                optStr(e.PlayType),
		"passer_player_id":         optStr(e.PasserPlayerID),
		"passer_player_name":       optStr(e.PasserPlayerName),
		"receiver_player_id":       optStr(e.ReceiverPlayerID),
		"receiver_player_name":     optStr(e.ReceiverPlayerName),
		"rusher_player_id":         optStr(e.RusherPlayerID),
		"rusher_player_name":       optStr(e.RusherPlayerName),
		"kicker_player_id":         optStr(e.KickerPlayerID),
		"kicker_player_name":       optStr(e.KickerPlayerName),
	}
}

// Table renders events into a freshly built table with the full schema.
func Table(events []Event) *tabular.Table {
	table := tabular.New(Columns...)
	for _, e := range events {
		table.Append(e.Record())
	}
	return table
}
