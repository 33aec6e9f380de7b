package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-appointments/internal/templates"
	"github.com/wolfman30/clinic-appointments/internal/validation"
)

// Patient-facing copy.
const (
	MessageProcessing = "Procesando tu cita médica..."
	MessageScheduled  = "¡Cita agendada exitosamente! Te enviaremos una confirmación por email y SMS."
)

// Field names used in validation errors and JSON bodies.
const (
	FieldPatientName = "patient_name"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldDate        = "date"
	FieldTime        = "time"
	FieldServiceCode = "service_code"
	FieldSymptoms    = "symptoms"
)

// RawFields is the form as the patient typed it.
type RawFields struct {
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	ServiceCode string `json:"service_code"`
	Symptoms    string `json:"symptoms"`
}

type requiredField struct {
	name  string
	value string
}

func (f RawFields) required() []requiredField {
	return []requiredField{
		{FieldPatientName, f.PatientName},
		{FieldPhone, f.Phone},
		{FieldEmail, f.Email},
		{FieldDate, f.Date},
		{FieldTime, f.Time},
		{FieldServiceCode, f.ServiceCode},
	}
}

// Validate applies the submit rules in order: presence of every required
// field, then email shape, phone characters and finally the date.
func (f RawFields) Validate(v *validation.Validator) (time.Time, *validation.Error) {
	for _, field := range f.required() {
		if err := v.Check(field.name, field.value, validation.KindText); err != nil {
			return time.Time{}, err
		}
	}
	if err := v.Check(FieldEmail, f.Email, validation.KindEmail); err != nil {
		return time.Time{}, err
	}
	if err := v.Check(FieldPhone, f.Phone, validation.KindPhone); err != nil {
		return time.Time{}, err
	}
	day, err := v.ParseDate(f.Date)
	if err != nil {
		err.Field = FieldDate
		return time.Time{}, err
	}
	return day, nil
}

// AppointmentRequest is a validated request. It lives only until the patient
// confirms or cancels.
type AppointmentRequest struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	PatientName string    `json:"patient_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Date        string    `json:"date"`
	Day         time.Time `json:"-"`
	Time        string    `json:"time"`
	ServiceCode string    `json:"service_code"`
	Symptoms    string    `json:"symptoms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newRequest(id, sessionID string, f RawFields, day time.Time, now time.Time) AppointmentRequest {
	return AppointmentRequest{
		ID:          id,
		SessionID:   sessionID,
		PatientName: strings.TrimSpace(f.PatientName),
		Phone:       strings.TrimSpace(f.Phone),
		Email:       strings.TrimSpace(f.Email),
		Date:        strings.TrimSpace(f.Date),
		Day:         day,
		Time:        strings.TrimSpace(f.Time),
		ServiceCode: strings.TrimSpace(f.ServiceCode),
		Symptoms:    strings.TrimSpace(f.Symptoms),
		CreatedAt:   now.UTC(),
	}
}

// TemplateData fills the confirmation template fields.
func (r AppointmentRequest) TemplateData(clinicName, serviceName, formattedDate string) templates.AppointmentDetails {
	return templates.AppointmentDetails{
		ClinicName:  clinicName,
		PatientName: r.PatientName,
		Phone:       r.Phone,
		Email:       r.Email,
		Date:        formattedDate,
		Time:        r.Time,
		ServiceName: serviceName,
		Symptoms:    r.Symptoms,
	}
}

// Confirmation is what the patient reviews before confirming.
type Confirmation struct {
	Request       AppointmentRequest `json:"request"`
	FormattedDate string             `json:"formatted_date"`
	ServiceName   string             `json:"service_name"`
	Details       string             `json:"details"`
}
