// Package roster models season roster rows and the fantasy position buckets
// derived from them.
package roster

import "strings"

// Buckets downstream scoring understands. Anything else collapses to OTH.
const (
	BucketQB  = "QB"
	BucketRB  = "RB"
	BucketWR  = "WR"
	BucketTE  = "TE"
	BucketK   = "K"
	BucketOTH = "OTH"
)

// Row is one player on a season roster, keyed by the league's GSIS id.
type Row struct {
	GsisID   string
	FullName string
	Team     string
	Position string
}

// Bucket normalizes a raw roster position into a scoring bucket. Fullbacks
// count as running backs.
func Bucket(position string) string {
	pos := strings.ToUpper(strings.TrimSpace(position))
	if pos == "FB" {
		pos = BucketRB
	}
	switch pos {
	case BucketQB, BucketRB, BucketWR, BucketTE, BucketK:
		return pos
	default:
		return BucketOTH
	}
}
