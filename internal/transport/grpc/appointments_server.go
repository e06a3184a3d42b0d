package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

type appointmentsService interface {
	Book(ctx context.Context, in appointments.BookInput) (domain.Appointment, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error)
	Cancel(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	Complete(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	ListProfessionals(ctx context.Context) ([]domain.Professional, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*BookAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "BookAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := callerID(ctx, req.UserID)
	if err != nil {
		log.Warn("caller rejected", slog.String("code", status.Code(err).String()))
		return nil, err
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("user_id", userID))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}
	professionalID, err := uuid.Parse(strings.TrimSpace(req.ProfessionalID))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("user_id", userID))
		return nil, status.Error(codes.InvalidArgument, "professional_id must be a UUID")
	}

	appt, err := s.svc.Book(ctx, appointments.BookInput{
		UserID:         userID,
		ProfessionalID: professionalID,
		StartTime:      *req.StartTime,
		EndTime:        *req.EndTime,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info(
				"appointment conflict",
				slog.String("user_id", userID),
				slog.String("professional_id", professionalID.String()),
				slog.Time("start_time", *req.StartTime),
				slog.Time("end_time", *req.EndTime),
			)
			return nil, status.Error(codes.FailedPrecondition, "The healthcare professional is already booked at this time.")
		}
		return nil, s.statusError(log, "appointment book failed", err, slog.String("user_id", userID))
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("user_id", appt.UserID),
		slog.String("professional_id", appt.ProfessionalID.String()),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)

	return &BookAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := callerID(ctx, req.UserID)
	if err != nil {
		log.Warn("caller rejected", slog.String("code", status.Code(err).String()))
		return nil, err
	}

	appts, err := s.svc.ListForUser(ctx, userID)
	if err != nil {
		return nil, s.statusError(log, "appointments list failed", err, slog.String("user_id", userID))
	}

	out := make([]*Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, toWireAppointment(a))
	}

	log.Debug("appointments listed", slog.String("user_id", userID), slog.Int("count", len(out)))

	return &ListAppointmentsResponse{Appointments: out}, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*CancelAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := callerID(ctx, req.UserID)
	if err != nil {
		log.Warn("caller rejected", slog.String("code", status.Code(err).String()))
		return nil, err
	}
	// unparseable ids are reported exactly like unknown ones
	id, _ := uuid.Parse(strings.TrimSpace(req.AppointmentID))

	appt, err := s.svc.Cancel(ctx, userID, id)
	if err != nil {
		if errors.Is(err, appointments.ErrTooLate) {
			log.Info("appointment cancel too late", slog.String("appointment_id", id.String()), slog.String("user_id", userID))
			return nil, status.Error(codes.FailedPrecondition, "Cannot cancel appointment inside the cancellation window.")
		}
		return nil, s.statusError(log, "appointment cancel failed", err,
			slog.String("appointment_id", id.String()), slog.String("user_id", userID))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()), slog.String("user_id", userID))
	return &CancelAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *AppointmentsServer) CompleteAppointment(ctx context.Context, req *CompleteAppointmentRequest) (*CompleteAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CompleteAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := callerID(ctx, req.UserID)
	if err != nil {
		log.Warn("caller rejected", slog.String("code", status.Code(err).String()))
		return nil, err
	}
	id, _ := uuid.Parse(strings.TrimSpace(req.AppointmentID))

	appt, err := s.svc.Complete(ctx, userID, id)
	if err != nil {
		return nil, s.statusError(log, "appointment complete failed", err,
			slog.String("appointment_id", id.String()), slog.String("user_id", userID))
	}

	log.Info("appointment completed", slog.String("appointment_id", appt.ID.String()), slog.String("user_id", userID))
	return &CompleteAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *AppointmentsServer) ListProfessionals(ctx context.Context, req *ListProfessionalsRequest) (*ListProfessionalsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListProfessionals"))

	pros, err := s.svc.ListProfessionals(ctx)
	if err != nil {
		return nil, s.statusError(log, "professionals list failed", err)
	}

	out := make([]*Professional, 0, len(pros))
	for _, p := range pros {
		out = append(out, toWireProfessional(p))
	}
	return &ListProfessionalsResponse{Professionals: out}, nil
}

// statusError maps the outcomes shared by every rpc. Unclassified errors are
// logged and reported as a bare Internal.
func (s *AppointmentsServer) statusError(log *slog.Logger, msg string, err error, attrs ...any) error {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err), slog.String("field", vErr.Field)}, attrs...)...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("appointment not found", attrs...)
		return status.Error(codes.NotFound, "appointment not found")
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.FailedPrecondition, "The healthcare professional is already booked at this time.")
	case errors.Is(err, appointments.ErrInvalidTransition):
		log.Info("invalid status transition", attrs...)
		return status.Error(codes.FailedPrecondition, "Only booked appointments can change status.")
	}
	log.Error(msg, append([]any{slog.Any("err", err)}, attrs...)...)
	return status.Error(codes.Internal, "internal error")
}

func toWireAppointment(a domain.Appointment) *Appointment {
	out := &Appointment{
		ID:             a.ID.String(),
		UserID:         a.UserID,
		ProfessionalID: a.ProfessionalID.String(),
		StartTime:      a.StartTime.UTC(),
		EndTime:        a.EndTime.UTC(),
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}
	if a.Professional != nil {
		out.Professional = toWireProfessional(*a.Professional)
	}
	return out
}

func toWireProfessional(p domain.Professional) *Professional {
	return &Professional{
		ID:        p.ID.String(),
		Name:      p.Name,
		Specialty: p.Specialty,
	}
}
