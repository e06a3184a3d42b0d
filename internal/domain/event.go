package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EventType string

const (
	EventAppointmentBooked    EventType = "appointment.booked"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"
)

// EventTypeFor returns the event emitted when an appointment enters status.
func EventTypeFor(status AppointmentStatus) EventType {
	switch status {
	case AppointmentStatusCancelled:
		return EventAppointmentCancelled
	case AppointmentStatusCompleted:
		return EventAppointmentCompleted
	default:
		return EventAppointmentBooked
	}
}

// OutboxEvent is a lifecycle event recorded in the same transaction as the
// appointment mutation and relayed to the broker later.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:appointment_events,alias:ev"`

	ID          int64           `bun:"id,pk,autoincrement"`
	EventID     uuid.UUID       `bun:"event_id,notnull,type:uuid"`
	EventType   EventType       `bun:"event_type,notnull"`
	AggregateID uuid.UUID       `bun:"aggregate_id,notnull,type:uuid"`
	Payload     json.RawMessage `bun:"payload,type:jsonb,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	PublishedAt *time.Time      `bun:"published_at"`
}

func (e *OutboxEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if e.EventID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.EventID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// NewAppointmentEvent snapshots appt into an outbox event of the given type.
func NewAppointmentEvent(eventType EventType, appt Appointment) (OutboxEvent, error) {
	snapshot := appt
	snapshot.Professional = nil
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		EventType:   eventType,
		AggregateID: appt.ID,
		Payload:     payload,
	}, nil
}
