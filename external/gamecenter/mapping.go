package gamecenter

import (
	"strconv"
	"strings"

	"github.com/gridironlab/pbp-refresh/internal/domain/play"
)

// The game-center feed wraps the game under its event id:
// {"<event_id>": {"drives": {"1": {"plays": {...}}, "crntdrv": 5}, ...}}.
// Values are loosely typed, so extraction walks generic maps.

func extractGameBlob(doc map[string]any, eventID string) map[string]any {
	if len(doc) == 0 {
		return nil
	}
	if game, ok := doc[eventID].(map[string]any); ok {
		return game
	}
	if _, ok := doc["drives"]; ok {
		return doc
	}
	if _, ok := doc["home"]; ok {
		return doc
	}
	return nil
}

var finalStatuses = map[string]bool{
	"final":     true,
	"finished":  true,
	"complete":  true,
	"completed": true,
}

// inferIsFinal checks the feed's own status fields first and falls back to
// the play data: a play sitting at 0:00 in the fourth quarter or later means
// regulation has run out.
func inferIsFinal(game map[string]any, rows []play.RawRow) bool {
	for _, key := range []string{"phase", "gameStatus", "status"} {
		if s := getString(game, key); s != "" && finalStatuses[strings.ToLower(strings.TrimSpace(s))] {
			return true
		}
	}
	for _, key := range []string{"final", "isFinal", "is_final"} {
		if v, ok := game[key]; ok {
			return looseBool(v)
		}
	}
	for _, row := range rows {
		if row.Qtr == nil || *row.Qtr < 4 || row.Time == nil {
			continue
		}
		if secs, ok := parseClockSeconds(*row.Time); ok && secs == 0 {
			return true
		}
	}
	return false
}

func parseClockSeconds(clock string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, false
	}
	mins, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	secs, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return mins*60 + secs, true
}

// gameToRows flattens every play under every drive into raw rows. Entries
// that are not drive objects, like the current-drive counter, are skipped.
func gameToRows(gameID string, game map[string]any) []play.RawRow {
	drives, _ := game["drives"].(map[string]any)
	gameDate := firstString(game, "gameDate", "startTime")

	var rows []play.RawRow
	for _, value := range drives {
		drive, ok := value.(map[string]any)
		if !ok {
			continue
		}
		plays, ok := drive["plays"].(map[string]any)
		if !ok {
			continue
		}
		driveNum := firstInt(drive, "driveNum", "drive_num", "drive")

		for _, pv := range plays {
			p, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			playID := firstInt(p, "playId", "play_id")
			if playID == nil {
				continue
			}

			row := play.RawRow{
				GameID:   gameID,
				PlayID:   *playID,
				GameDate: gameDate,
				Desc:     getString(p, "desc"),
				Posteam:  firstStringPtr(p, "possessionTeam", "posteam"),
				Defteam:  firstStringPtr(p, "defensiveTeam", "defteam"),
				Qtr:      firstInt(p, "qtr"),
				Time:     firstStringPtr(p, "time", "clock"),
				Drive:    driveNum,
				PlayType: firstStringPtr(p, "playType", "play_type"),
			}
			applyScoringFields(&row, p)
			rows = append(rows, row)
		}
	}
	return rows
}

// applyScoringFields normalizes the feed's scoringPlayType plus description
// into the flag fields the classifier reads. The feed does not deliver the
// richer stat columns, so those stay absent.
func applyScoringFields(row *play.RawRow, p map[string]any) {
	desc := strings.ToLower(row.Desc)
	spt := strings.ToLower(strings.TrimSpace(firstString(p, "scoringPlayType", "scoring_play_type")))

	touchdown := 0
	if strings.Contains(spt, "touchdown") || spt == "td" {
		touchdown = 1
	}
	safety := 0
	if strings.Contains(spt, "safety") {
		safety = 1
	}
	row.Touchdown = &touchdown
	row.Safety = &safety

	if strings.Contains(spt, "field goal") || spt == "fg" || spt == "fieldgoal" {
		result := "made"
		if strings.Contains(desc, "no good") || strings.Contains(desc, "missed") || strings.Contains(desc, "blocked") {
			result = "missed"
		}
		row.FieldGoalResult = &result
	}

	if strings.Contains(spt, "extra point") || spt == "xp" || spt == "pat" {
		result := "good"
		if strings.Contains(desc, "no good") || strings.Contains(desc, "missed") || strings.Contains(desc, "blocked") {
			result = "no good"
		}
		row.ExtraPointResult = &result
	}

	if strings.Contains(spt, "two-point") || strings.Contains(spt, "two point") || spt == "2pt" || spt == "two_point" {
		switch {
		case strings.Contains(desc, "conversion succeeds") || strings.Contains(desc, "is good") || strings.Contains(desc, "successful"):
			result := "success"
			row.TwoPointConvResult = &result
		case strings.Contains(desc, "fails") || strings.Contains(desc, "no good") || strings.Contains(desc, "unsuccessful"):
			result := "fail"
			row.TwoPointConvResult = &result
		}
	}

	if touchdown == 1 {
		passTD := 0
		if strings.Contains(desc, "pass") && (strings.Contains(desc, "to ") || strings.Contains(desc, "complete") || strings.Contains(desc, "incomplete")) {
			passTD = 1
		}
		rushTD := 0
		if strings.Contains(desc, "left end") || strings.Contains(desc, "right end") ||
			strings.Contains(desc, "up the middle") || strings.Contains(desc, "run") || strings.Contains(desc, "rush") {
			rushTD = 1
		}
		row.PassTouchdown = &passTD
		row.RushTouchdown = &rushTD
	}

	defTwoPt := 0
	if strings.Contains(spt, "defensive two-point") || strings.Contains(spt, "defensive 2pt") {
		defTwoPt = 1
	}
	row.DefensiveTwoPointConv = &defTwoPt
}

func maxPlayID(rows []play.RawRow) int {
	max := 0
	for _, row := range rows {
		if row.PlayID > max {
			max = row.PlayID
		}
	}
	return max
}

func getString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := getString(m, key); s != "" {
			return s
		}
	}
	return ""
}

func firstStringPtr(m map[string]any, keys ...string) *string {
	if s := firstString(m, keys...); s != "" {
		return &s
	}
	return nil
}

func firstInt(m map[string]any, keys ...string) *int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			n := int(v)
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return &n
			}
		}
	}
	return nil
}

func looseBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return int(t) == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "t", "yes", "y":
			return true
		}
	}
	return false
}
