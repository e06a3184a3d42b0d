package grpc

import "time"

type Professional struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type Appointment struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	ProfessionalID string        `json:"professional_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Professional   *Professional `json:"professional,omitempty"`
}

type BookAppointmentRequest struct {
	UserID         string     `json:"user_id"`
	ProfessionalID string     `json:"professional_id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

type BookAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	UserID string `json:"user_id"`
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment `json:"appointments"`
}

type CancelAppointmentRequest struct {
	UserID        string `json:"user_id"`
	AppointmentID string `json:"appointment_id"`
}

type CancelAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type CompleteAppointmentRequest struct {
	UserID        string `json:"user_id"`
	AppointmentID string `json:"appointment_id"`
}

type CompleteAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type ListProfessionalsRequest struct{}

type ListProfessionalsResponse struct {
	Professionals []*Professional `json:"professionals"`
}
