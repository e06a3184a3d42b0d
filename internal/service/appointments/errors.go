package appointments

import (
	"errors"

	"careslot/backend/internal/store"
)

var (
	// ErrTooLate is returned when a booked appointment is cancelled inside the
	// lockout window before its start.
	ErrTooLate = errors.New("cancellation lockout window has started")
	// ErrInvalidTransition is returned when the current status does not allow
	// the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type ValidationError struct {
	Field string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

// PersistenceError wraps a storage failure. Callers should report it as a
// generic failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "appointments: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// classify leaves domain outcomes untouched and wraps everything else as a
// PersistenceError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, ErrTooLate),
		errors.Is(err, ErrInvalidTransition):
		return err
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Outcome names the result of an engine operation for logs and metrics.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return "validation_error"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTooLate):
		return "too_late"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}
