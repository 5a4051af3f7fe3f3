package scoring

import (
	"regexp"
	"strings"

	"github.com/gridironlab/pbp-refresh/internal/domain/play"
)

// Textual fallback for defensive two-point returns. Some upstream schema
// versions omit the explicit defensive_two_point_conv field entirely, leaving
// the play description as the only signal. The explicit flag, when present,
// always wins over these patterns.
var defTwoPointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)blocked.*(returned|recovered).*for two`),
	regexp.MustCompile(`(?i)defensive two[- ]point`),
}

// Classifier derives scoring events from raw play rows. It is pure and
// deterministic; RefreshedAt stamps every produced event.
type Classifier struct {
	RefreshedAt string
}

// Classify keeps rows for which at least one scoring rule holds and copies
// their attributes into events. Missing fields never fail a row; a flag that
// cannot be determined is simply false.
func (c Classifier) Classify(rows []play.RawRow) []Event {
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		event, ok := c.classifyRow(row)
		if ok {
			events = append(events, event)
		}
	}
	return events
}

func (c Classifier) classifyRow(row play.RawRow) (Event, bool) {
	isTD := intFlag(row.Touchdown)
	isFG := eqFold(row.FieldGoalResult, "made")
	isXP := inFold(row.ExtraPointResult, "good", "made")
	isTwoPt := inFold(row.TwoPointConvResult, "success", "good")
	isSafety := intFlag(row.Safety)
	isDefTwoPt := c.defensiveTwoPoint(row)

	if !(isTD || isFG || isXP || isTwoPt || isSafety || isDefTwoPt) {
		return Event{}, false
	}

	passTD := intFlag(row.PassTouchdown)
	rushTD := intFlag(row.RushTouchdown)
	isTDOff := isTD && (passTD || rushTD)
	isTDDef := isTD && !isTDOff

	return Event{
		RefreshedAt: c.RefreshedAt,
		Season:      row.Season,
		Week:        row.Week,
		GameID:      row.GameID,
		GameDate:    row.GameDate,

		Posteam: row.Posteam,
		Defteam: row.Defteam,
		Qtr:     row.Qtr,
		Time:    row.Time,
		Drive:   row.Drive,
		PlayID:  row.PlayID,
		Desc:    row.Desc,

		Touchdown:             row.Touchdown,
		FieldGoalResult:       row.FieldGoalResult,
		ExtraPointResult:      row.ExtraPointResult,
		TwoPointConvResult:    row.TwoPointConvResult,
		Safety:                row.Safety,
		DefensiveTwoPointConv: row.DefensiveTwoPointConv,

		IsTD:       isTD,
		IsFG:       isFG,
		IsXP:       isXP,
		IsTwoPt:    isTwoPt,
		IsSafety:   isSafety,
		IsDefTwoPt: isDefTwoPt,

		PassTouchdown: passTD,
		RushTouchdown: rushTD,
		IsTDOffense:   isTDOff,
		IsTDDefense:   isTDDef,

		PlayType: row.PlayType,

		PasserPlayerID:     row.PasserPlayerID,
		PasserPlayerName:   row.PasserPlayerName,
		ReceiverPlayerID:   row.ReceiverPlayerID,
		ReceiverPlayerName: row.ReceiverPlayerName,
		RusherPlayerID:     row.RusherPlayerID,
		RusherPlayerName:   row.RusherPlayerName,
		KickerPlayerID:     row.KickerPlayerID,
		KickerPlayerName:   row.KickerPlayerName,
	}, true
}

func (c Classifier) defensiveTwoPoint(row play.RawRow) bool {
	if row.DefensiveTwoPointConv != nil {
		return *row.DefensiveTwoPointConv == 1
	}
	for _, pattern := range defTwoPointPatterns {
		if pattern.MatchString(row.Desc) {
			return true
		}
	}
	return false
}

func intFlag(p *int) bool {
	return p != nil && *p == 1
}

func eqFold(p *string, want string) bool {
	return p != nil && strings.EqualFold(*p, want)
}

func inFold(p *string, wants ...string) bool {
	if p == nil {
		return false
	}
	for _, want := range wants {
		if strings.EqualFold(*p, want) {
			return true
		}
	}
	return false
}
