package store

import (
	"context"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
)

// ProfessionalDirectory is read-only access to healthcare professionals.
// Get returns ErrNotFound for unknown ids.
type ProfessionalDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Professional, error)
	List(ctx context.Context) ([]domain.Professional, error)
}
