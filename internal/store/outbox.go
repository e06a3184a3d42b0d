package store

import (
	"context"

	"careslot/backend/internal/domain"
)

// OutboxSource hands unpublished lifecycle events to the relay. fn runs inside
// a transaction holding row locks on the batch; events are marked published
// only when fn returns nil.
type OutboxSource interface {
	RelayBatch(ctx context.Context, limit int, fn func(ctx context.Context, events []domain.OutboxEvent) error) (int, error)
}
