package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"careslot/backend/internal/domain"
)

// AppointmentRepository is the appointment store as seen by the booking engine.
// Mutations run inside one of the transaction helpers so that the conflict check
// and the write it guards commit together.
type AppointmentRepository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
	// InProfessionalTransaction serializes fn against every other transaction
	// opened for the same professional.
	InProfessionalTransaction(ctx context.Context, professionalID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error

	// ListForUser returns the user's appointments, most recent start first, each
	// joined with its professional.
	ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error)
}

type BookingTx interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// FindForUser loads an appointment by id scoped to its owner and locks the
	// row. A missing id and a foreign owner both yield ErrNotFound.
	FindForUser(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	FindOverlapping(ctx context.Context, professionalID uuid.UUID, start, end time.Time, status domain.AppointmentStatus) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	AppendEvent(ctx context.Context, ev domain.OutboxEvent) error
}
