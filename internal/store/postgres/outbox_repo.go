package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"careslot/backend/internal/domain"
)

type OutboxRepo struct {
	db *bun.DB
}

func NewOutboxRepo(db *bun.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// RelayBatch locks up to limit unpublished events, skipping rows held by other
// relays, and marks them published once fn succeeds.
func (r *OutboxRepo) RelayBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []domain.OutboxEvent) error) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var relayed int
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var events []domain.OutboxEvent
		err := tx.NewSelect().
			Model(&events).
			Where("ev.published_at IS NULL").
			OrderExpr("ev.id ASC").
			Limit(limit).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		if err := fn(ctx, events); err != nil {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		_, err = tx.NewUpdate().
			Model((*domain.OutboxEvent)(nil)).
			Set("published_at = ?", time.Now().UTC()).
			Where("ev.id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		relayed = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return relayed, nil
}
