package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further transition is allowed from s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusBooked, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
// Only booked appointments move, and only to cancelled or completed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if !s.Valid() || s.Terminal() {
		return false
	}
	return next == AppointmentStatusCancelled || next == AppointmentStatusCompleted
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID             uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	UserID         string            `bun:"user_id,notnull" json:"user_id"`
	ProfessionalID uuid.UUID         `bun:"professional_id,notnull,type:uuid" json:"professional_id"`
	StartTime      time.Time         `bun:"start_time,notnull" json:"start_time"`
	EndTime        time.Time         `bun:"end_time,notnull" json:"end_time"`
	Status         AppointmentStatus `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull" json:"updated_at"`

	Professional *Professional `bun:"rel:belongs-to,join:professional_id=id" json:"professional,omitempty"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// ConflictsWith applies the booking overlap rule against [start, end]. Both ends
// are inclusive, so an interval that only touches a's boundary still conflicts.
func (a Appointment) ConflictsWith(start, end time.Time) bool {
	return Overlaps(a.StartTime, a.EndTime, start, end)
}

// Overlaps reports whether the requested interval [start, end] collides with the
// existing interval [existingStart, existingEnd]: the requested start or end falls
// inside the existing interval (ends included), or the request contains it.
func Overlaps(existingStart, existingEnd, start, end time.Time) bool {
	if within(start, existingStart, existingEnd) {
		return true
	}
	if within(end, existingStart, existingEnd) {
		return true
	}
	return !start.After(existingStart) && !end.Before(existingEnd)
}

func within(t, lo, hi time.Time) bool {
	return !t.Before(lo) && !t.After(hi)
}
