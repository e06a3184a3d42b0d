package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

const DefaultCancellationLockout = 24 * time.Hour

var tracer = otel.Tracer("careslot/internal/service/appointments")

type outcomeRecorder interface {
	ObserveOutcome(operation, outcome string)
}

type Service struct {
	repo          store.AppointmentRepository
	professionals store.ProfessionalDirectory
	now           func() time.Time
	lockout       time.Duration
	metrics       outcomeRecorder
}

type Option func(*Service)

// WithClock replaces the wall clock used for the future-start check and the
// cancellation lockout.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithCancellationLockout(d time.Duration) Option {
	return func(s *Service) {
		if d >= time.Hour {
			s.lockout = d
		}
	}
}

func WithMetrics(m outcomeRecorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(repo store.AppointmentRepository, professionals store.ProfessionalDirectory, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		professionals: professionals,
		now:           time.Now,
		lockout:       DefaultCancellationLockout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookInput struct {
	UserID         string
	ProfessionalID uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
}

func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Book", trace.WithAttributes(
		attribute.String("careslot.professional_id", in.ProfessionalID.String()),
	))
	defer span.End()

	appt, err := s.book(ctx, in)
	s.observe(span, "book", err)
	return appt, err
}

func (s *Service) book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return domain.Appointment{}, validationError("user_id", "user_id is required")
	}
	if in.ProfessionalID == uuid.Nil {
		return domain.Appointment{}, validationError("professional_id", "professional_id is required")
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time", "start_time is required")
	}
	if in.EndTime.IsZero() {
		return domain.Appointment{}, validationError("end_time", "end_time is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !start.After(s.now()) {
		return domain.Appointment{}, validationError("start_time", "start_time must be in the future")
	}
	if !end.After(start) {
		return domain.Appointment{}, validationError("end_time", "end_time must be after start_time")
	}

	if _, err := s.professionals.Get(ctx, in.ProfessionalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, validationError("professional_id", "professional_id does not reference an existing professional")
		}
		return domain.Appointment{}, classify("get professional", err)
	}

	var created domain.Appointment
	err := s.repo.InProfessionalTransaction(ctx, in.ProfessionalID, func(ctx context.Context, tx store.BookingTx) error {
		existing, err := tx.FindOverlapping(ctx, in.ProfessionalID, start, end, domain.AppointmentStatusBooked)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Status == domain.AppointmentStatusBooked && e.ConflictsWith(start, end) {
				return store.ErrConflict
			}
		}

		a, err := tx.CreateAppointment(ctx, domain.Appointment{
			UserID:         userID,
			ProfessionalID: in.ProfessionalID,
			StartTime:      start,
			EndTime:        end,
			Status:         domain.AppointmentStatusBooked,
		})
		if err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, domain.EventAppointmentBooked, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, classify("book", err)
	}
	return created, nil
}

// Cancel moves a booked appointment to cancelled. Appointments starting in fewer
// than the lockout's whole hours (truncated, signed) stay booked. Cancelled and
// completed appointments are terminal and are rejected with ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Cancel", trace.WithAttributes(
		attribute.String("careslot.appointment_id", appointmentID.String()),
	))
	defer span.End()

	appt, err := s.transition(ctx, userID, appointmentID, domain.AppointmentStatusCancelled)
	s.observe(span, "cancel", err)
	return appt, err
}

// Complete moves a booked appointment to completed.
func (s *Service) Complete(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Complete", trace.WithAttributes(
		attribute.String("careslot.appointment_id", appointmentID.String()),
	))
	defer span.End()

	appt, err := s.transition(ctx, userID, appointmentID, domain.AppointmentStatusCompleted)
	s.observe(span, "complete", err)
	return appt, err
}

func (s *Service) transition(ctx context.Context, userID string, appointmentID uuid.UUID, next domain.AppointmentStatus) (domain.Appointment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Appointment{}, validationError("user_id", "user_id is required")
	}
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, store.ErrNotFound
	}

	var updated domain.Appointment
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		appt, err := tx.FindForUser(ctx, userID, appointmentID)
		if err != nil {
			return err
		}
		if !appt.Status.CanTransitionTo(next) {
			return ErrInvalidTransition
		}
		if next == domain.AppointmentStatusCancelled && s.insideLockout(appt.StartTime) {
			return ErrTooLate
		}

		u, err := tx.UpdateStatus(ctx, appt.ID, next)
		if err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, domain.EventTypeFor(next), u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return domain.Appointment{}, classify(string(next), err)
	}
	return updated, nil
}

func (s *Service) insideLockout(start time.Time) bool {
	return HoursUntil(start, s.now()) < int64(s.lockout/time.Hour)
}

// HoursUntil is the signed number of whole hours from now until start,
// truncated toward zero.
func HoursUntil(start, now time.Time) int64 {
	return int64(start.Sub(now) / time.Hour)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user_id", "user_id is required")
	}
	appts, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, classify("list appointments", err)
	}
	return appts, nil
}

func (s *Service) ListProfessionals(ctx context.Context) ([]domain.Professional, error) {
	pros, err := s.professionals.List(ctx)
	if err != nil {
		return nil, classify("list professionals", err)
	}
	return pros, nil
}

func appendEvent(ctx context.Context, tx store.BookingTx, eventType domain.EventType, appt domain.Appointment) error {
	ev, err := domain.NewAppointmentEvent(eventType, appt)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, ev)
}

func (s *Service) observe(span trace.Span, operation string, err error) {
	outcome := Outcome(err)
	span.SetAttributes(attribute.String("careslot.outcome", outcome))
	if s.metrics != nil {
		s.metrics.ObserveOutcome(operation, outcome)
	}
}
