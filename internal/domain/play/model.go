// Package play holds the raw play-by-play row shape as fetched from the
// upstream feed, before scoring classification.
package play

// RawRow is one play as delivered by the feed. Pointer fields are absent when
// the feed did not populate them; numeric flag fields use 0/1 semantics.
type RawRow struct {
	GameID   string
	PlayID   int
	Season   int
	Week     int
	GameDate string

	Posteam *string
	Defteam *string
	Qtr     *int
	Time    *string
	Drive   *int
	Desc    string

	PlayType *string

	Touchdown             *int
	PassTouchdown         *int
	RushTouchdown         *int
	TdTeam                *string
	FieldGoalResult       *string
	ExtraPointResult      *string
	TwoPointConvResult    *string
	DefensiveTwoPointConv *int
	Safety                *int

	PasserPlayerID   *string
	PasserPlayerName *string

	ReceiverPlayerID   *string
	ReceiverPlayerName *string

	RusherPlayerID   *string
	RusherPlayerName *string

	KickerPlayerID   *string
	KickerPlayerName *string
}

// FetchResult is the outcome of pulling one game from the feed.
type FetchResult struct {
	GameID    string
	EventID   string
	Rows      []RawRow
	MaxPlayID int
	IsFinal   bool
	NotFound  bool
	// RawPayload is the upstream response body, kept only so the optional
	// archive sink can store it. Empty when the feed had nothing.
	RawPayload string
}
