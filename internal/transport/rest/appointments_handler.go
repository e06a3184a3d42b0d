package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
)

const (
	msgUnavailable      = "The healthcare professional is not available at this time."
	msgNotFound         = "Appointment not found or access denied"
	msgCancelled        = "Appointment cancelled"
	msgCompleted        = "Appointment marked as completed"
	msgCompleteInvalid  = "Only booked appointments can be marked as completed"
	msgCancelInvalid    = "Only booked appointments can be cancelled"
	msgInvalidData      = "The given data was invalid."
	msgInternal         = "internal error"
	msgBodyTooLarge     = "request body too large"
	defaultLockoutHours = 24

	maxBookBodyBytes      = 1 << 20
	legacyTimestampLayout = "2006-01-02T15:04:05"
)

type appointmentsService interface {
	Book(ctx context.Context, in appointments.BookInput) (domain.Appointment, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error)
	Cancel(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	Complete(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	ListProfessionals(ctx context.Context) ([]domain.Professional, error)
}

type AppointmentsHandler struct {
	svc          appointmentsService
	log          *slog.Logger
	lockoutHours int
}

func NewAppointmentsHandler(svc appointmentsService, lockout time.Duration, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	hours := int(lockout / time.Hour)
	if hours <= 0 {
		hours = defaultLockoutHours
	}
	return &AppointmentsHandler{
		svc:          svc,
		log:          log.With(slog.String("component", "http.appointments")),
		lockoutHours: hours,
	}
}

type dataResponse struct {
	Data any `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// bookRequest accepts both the current field names and the older
// healthcare_professional_id / appointment_*_time names.
type bookRequest struct {
	ProfessionalID string `json:"professional_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`

	HealthcareProfessionalID string `json:"healthcare_professional_id"`
	AppointmentStartTime     string `json:"appointment_start_time"`
	AppointmentEndTime       string `json:"appointment_end_time"`
}

func (h *AppointmentsHandler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	pros, err := h.svc.ListProfessionals(r.Context())
	if err != nil {
		h.writeError(w, r, "list professionals", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: pros})
}

func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	appts, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "list appointments", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: appts})
}

func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBookBodyBytes)
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "request body must be a JSON object"})
		return
	}

	in, fieldErrs := parseBookRequest(userID, req)
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Message: msgInvalidData, Errors: fieldErrs})
		return
	}

	appt, err := h.svc.Book(r.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.log.Info("appointment conflict",
				slog.String("user_id", userID),
				slog.String("professional_id", in.ProfessionalID.String()),
				slog.Time("start_time", in.StartTime),
				slog.Time("end_time", in.EndTime),
			)
			writeMessage(w, http.StatusConflict, msgUnavailable)
			return
		}
		h.writeError(w, r, "book", err)
		return
	}

	h.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("user_id", appt.UserID),
		slog.String("professional_id", appt.ProfessionalID.String()),
	)
	writeJSON(w, http.StatusCreated, dataResponse{Data: appt})
}

// parseBookRequest leaves absent fields zero so the engine reports them as
// required; only malformed values are rejected here, keyed by the field the
// client sent.
func parseBookRequest(userID string, req bookRequest) (appointments.BookInput, map[string][]string) {
	in := appointments.BookInput{UserID: userID}
	errs := map[string][]string{}

	if name, raw := pickField("professional_id", req.ProfessionalID, "healthcare_professional_id", req.HealthcareProfessionalID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs[name] = []string{name + " must be a UUID"}
		} else {
			in.ProfessionalID = id
		}
	}
	if name, raw := pickField("start_time", req.StartTime, "appointment_start_time", req.AppointmentStartTime); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			errs[name] = []string{name + " must be a valid date-time"}
		} else {
			in.StartTime = t
		}
	}
	if name, raw := pickField("end_time", req.EndTime, "appointment_end_time", req.AppointmentEndTime); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			errs[name] = []string{name + " must be a valid date-time"}
		} else {
			in.EndTime = t
		}
	}
	return in, errs
}

// pickField prefers the current field and falls back to its legacy alias.
func pickField(name, value, legacyName, legacyValue string) (string, string) {
	if v := strings.TrimSpace(value); v != "" {
		return name, v
	}
	return legacyName, strings.TrimSpace(legacyValue)
}

// parseTimestamp accepts RFC 3339 and the zone-less form older clients send,
// which is read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimestampLayout, raw, time.UTC)
}

func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := appointmentID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	}

	_, err := h.svc.Cancel(r.Context(), userID, id)
	switch {
	case err == nil:
		h.log.Info("appointment cancelled", slog.String("appointment_id", id.String()), slog.String("user_id", userID))
		writeMessage(w, http.StatusOK, msgCancelled)
	case errors.Is(err, appointments.ErrTooLate):
		writeMessage(w, http.StatusForbidden, fmt.Sprintf("Cannot cancel appointment less than %d hours before start time", h.lockoutHours))
	case errors.Is(err, appointments.ErrInvalidTransition):
		writeMessage(w, http.StatusBadRequest, msgCancelInvalid)
	default:
		h.writeError(w, r, "cancel", err)
	}
}

func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := appointmentID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgNotFound)
		return
	}

	_, err := h.svc.Complete(r.Context(), userID, id)
	switch {
	case err == nil:
		h.log.Info("appointment completed", slog.String("appointment_id", id.String()), slog.String("user_id", userID))
		writeMessage(w, http.StatusOK, msgCompleted)
	case errors.Is(err, appointments.ErrInvalidTransition):
		writeMessage(w, http.StatusBadRequest, msgCompleteInvalid)
	default:
		h.writeError(w, r, "complete", err)
	}
}

func appointmentID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps the outcomes shared by every route.
func (h *AppointmentsHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Message: vErr.Error(),
			Errors:  map[string][]string{vErr.Field: {vErr.Error()}},
		})
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, store.ErrConflict):
		writeMessage(w, http.StatusConflict, msgUnavailable)
	default:
		h.log.Error(op+" failed", slog.Any("err", err), slog.String("request_id", middleware.GetReqID(r.Context())))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
