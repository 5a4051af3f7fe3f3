// Package game holds per-game identity and the durable refresh state that
// drives freezing decisions.
package game

import "time"

const (
	FreezeReasonFinal    = "final"
	FreezeReasonInactive = "inactive_timeout"
)

// Game identifies one scheduled matchup.
type Game struct {
	ID       string
	Season   int
	Week     int
	GameDate string
	HomeTeam string
	AwayTeam string
	// EventID is the legacy feed identifier used to address the game-center
	// endpoint. Empty when the schedule carries no mapping.
	EventID string
}

// State is the durable refresh bookkeeping for one game within a season.
// Timestamps are stored as RFC 3339 UTC strings so the on-disk form stays
// directly comparable.
type State struct {
	Season         int
	GameID         string
	FirstSeenAt    string
	LastAttemptAt  string
	LastSuccessAt  string
	LastMaxPlayID  int
	LastNewPbpAt   string
	NoNewPbpStreak int
	IsFrozen       bool
	FreezeReason   string
}

// Freeze marks the game permanently excluded from future refreshes. The first
// reason wins; a frozen game is never re-frozen with a different reason.
func (s *State) Freeze(reason string) {
	if s.IsFrozen {
		return
	}
	s.IsFrozen = true
	s.FreezeReason = reason
}

// RecordAttempt stamps a fetch attempt at now.
func (s *State) RecordAttempt(now time.Time) {
	ts := now.UTC().Format(time.RFC3339)
	if s.FirstSeenAt == "" {
		s.FirstSeenAt = ts
	}
	s.LastAttemptAt = ts
}

// RecordSuccess stamps a successful fetch and tracks play-id advancement.
// A run where the max play id moved forward resets the inactivity streak;
// a stalled run increments it.
func (s *State) RecordSuccess(now time.Time, maxPlayID int) {
	ts := now.UTC().Format(time.RFC3339)
	s.LastSuccessAt = ts
	if maxPlayID > s.LastMaxPlayID {
		s.LastMaxPlayID = maxPlayID
		s.LastNewPbpAt = ts
		s.NoNewPbpStreak = 0
		return
	}
	s.NoNewPbpStreak++
}

// InactiveSince reports whether the game has gone the full window without any
// play-id advancement across at least minStreak stalled runs. A game that has
// never produced a play has no advancement anchor and is never inactive-frozen.
func (s *State) InactiveSince(now time.Time, window time.Duration, minStreak int) bool {
	if s.NoNewPbpStreak < minStreak {
		return false
	}
	if s.LastNewPbpAt == "" {
		return false
	}
	at, err := time.Parse(time.RFC3339, s.LastNewPbpAt)
	if err != nil {
		return false
	}
	return now.UTC().Sub(at) >= window
}
