package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

type ProfessionalRepo struct {
	db *bun.DB
}

func NewProfessionalRepo(db *bun.DB) *ProfessionalRepo {
	return &ProfessionalRepo{db: db}
}

func (r *ProfessionalRepo) Get(ctx context.Context, id uuid.UUID) (domain.Professional, error) {
	var p domain.Professional
	err := r.db.NewSelect().
		Model(&p).
		Where("hp.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Professional{}, store.ErrNotFound
		}
		return domain.Professional{}, err
	}
	return p, nil
}

func (r *ProfessionalRepo) List(ctx context.Context) ([]domain.Professional, error) {
	rows := make([]domain.Professional, 0)
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("hp.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
