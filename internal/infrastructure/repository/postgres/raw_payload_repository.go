// Package postgres archives raw feed documents so a refresh can be replayed
// or audited after the upstream has moved on.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gridironlab/pbp-refresh/internal/domain/rawdata"
)

const upsertRawPayloadQuery = `
INSERT INTO raw_feed_payloads (source, game_id, event_id, season, week, payload, payload_hash, fetched_at)
VALUES (:source, :game_id, :event_id, :season, :week, :payload, :payload_hash, :fetched_at)
ON CONFLICT (source, game_id, payload_hash)
DO UPDATE SET
    event_id = EXCLUDED.event_id,
    season = EXCLUDED.season,
    week = EXCLUDED.week,
    fetched_at = EXCLUDED.fetched_at`

type RawPayloadRepository struct {
	db *sqlx.DB
}

func NewRawPayloadRepository(db *sqlx.DB) *RawPayloadRepository {
	return &RawPayloadRepository{db: db}
}

func (r *RawPayloadRepository) UpsertMany(ctx context.Context, items []rawdata.Payload) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert raw payloads: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		model := rawPayloadInsertModel{
			Source:      item.Source,
			GameID:      item.GameID,
			EventID:     item.EventID,
			Season:      item.Season,
			Week:        item.Week,
			Payload:     item.PayloadJSON,
			PayloadHash: item.PayloadHash,
			FetchedAt:   item.FetchedAt,
		}
		if _, err := tx.NamedExecContext(ctx, upsertRawPayloadQuery, model); err != nil {
			return fmt.Errorf("upsert raw payload game=%s hash=%s: %w", item.GameID, item.PayloadHash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert raw payloads tx: %w", err)
	}

	return nil
}

type rawPayloadInsertModel struct {
	Source      string    `db:"source"`
	GameID      string    `db:"game_id"`
	EventID     string    `db:"event_id"`
	Season      int       `db:"season"`
	Week        int       `db:"week"`
	Payload     string    `db:"payload"`
	PayloadHash string    `db:"payload_hash"`
	FetchedAt   time.Time `db:"fetched_at"`
}
