package rawdata

import "time"

// Payload is one archived upstream response, kept for replay and audit.
type Payload struct {
	Source      string
	GameID      string
	EventID     string
	Season      int
	Week        int
	PayloadJSON string
	PayloadHash string
	FetchedAt   time.Time
}
