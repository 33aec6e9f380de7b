package templates

// AppointmentDetails is the data shown on the confirmation surface and in
// the confirmation email.
type AppointmentDetails struct {
	ClinicName  string
	PatientName string
	Phone       string
	Email       string
	Date        string
	Time        string
	ServiceName string
	Symptoms    string
}

const confirmationTemplate = `Detalles de la cita:
Paciente: {{.PatientName}}
Teléfono: {{.Phone}}
Email: {{.Email}}
Fecha: {{.Date}}
Hora: {{.Time}}
Servicio: {{.ServiceName}}
{{- if .Symptoms}}
Síntomas: {{.Symptoms}}
{{- end}}
`

const emailSubjectTemplate = `Confirmación de cita - {{.ServiceName}} el {{.Date}}`

const emailBodyTemplate = `Hola {{.PatientName}},

Tu cita en {{.ClinicName}} ha sido agendada.

Fecha: {{.Date}}
Hora: {{.Time}}
Servicio: {{.ServiceName}}

Si necesitas cambiarla, responde a este correo o llámanos.
`

// ConfirmationDetails renders the summary shown before the patient confirms.
// The symptoms line is omitted when no symptoms were given.
func (r *Renderer) ConfirmationDetails(d AppointmentDetails) (string, error) {
	return r.Render("confirmation", confirmationTemplate, d)
}

// ConfirmationEmail renders the subject and plain-text body of the patient
// confirmation email.
func (r *Renderer) ConfirmationEmail(d AppointmentDetails) (subject, body string, err error) {
	subject, err = r.Render("email_subject", emailSubjectTemplate, d)
	if err != nil {
		return "", "", err
	}
	body, err = r.Render("email_body", emailBodyTemplate, d)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
