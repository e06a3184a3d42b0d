package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

const (
	exclusionViolation  = "23P01"
	noOverlapConstraint = "appointments_no_overlap"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *AppointmentRepo) InProfessionalTransaction(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProfessionalSchedule(ctx, tx, professionalID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockProfessionalSchedule(ctx context.Context, tx bun.Tx, professionalID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", professionalID.String()).Exec(ctx)
	return err
}

func (r *AppointmentRepo) ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Professional").
		Where("a.user_id = ?", userID).
		OrderExpr("a.start_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:             appt.ID,
		UserID:         appt.UserID,
		ProfessionalID: appt.ProfessionalID,
		StartTime:      appt.StartTime,
		EndTime:        appt.EndTime,
		Status:         appt.Status,
		CreatedAt:      appt.CreatedAt,
		UpdatedAt:      appt.UpdatedAt,
	}

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if isOverlapViolation(err) {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r bookingTx) FindForUser(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.tx.NewSelect().
		Model(&m).
		Where("a.id = ?", appointmentID).
		Where("a.user_id = ?", userID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

// FindOverlapping matches rows whose start or end falls within [start, end], or
// that contain it, both ends inclusive.
func (r bookingTx) FindOverlapping(ctx context.Context, professionalID uuid.UUID, start, end time.Time, status domain.AppointmentStatus) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("a.professional_id = ?", professionalID).
		Where("a.status = ?", status).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("a.start_time BETWEEN ? AND ?", start, end).
				WhereOr("a.end_time BETWEEN ? AND ?", start, end).
				WhereOr("a.start_time <= ? AND a.end_time >= ?", start, end)
		}).
		OrderExpr("a.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r bookingTx) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	m := domain.Appointment{ID: appointmentID, Status: status}
	err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "updated_at").
		WherePK().
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r bookingTx) AppendEvent(ctx context.Context, ev domain.OutboxEvent) error {
	_, err := r.tx.NewInsert().
		Model(&ev).
		ExcludeColumn("id", "published_at").
		Returning("id").
		Exec(ctx)
	return err
}

func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation && pgErr.ConstraintName == noOverlapConstraint
}
