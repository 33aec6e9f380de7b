package events

import "time"

// AppointmentRequestedV1 is published once a patient confirms a request.
type AppointmentRequestedV1 struct {
	RequestID   string    `json:"request_id"`
	SessionID   string    `json:"session_id"`
	PatientName string    `json:"patient_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ServiceCode string    `json:"service_code"`
	ServiceName string    `json:"service_name"`
	Symptoms    string    `json:"symptoms,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func (AppointmentRequestedV1) EventType() string { return "appointments.request.confirmed.v1" }
