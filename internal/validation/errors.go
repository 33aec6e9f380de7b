package validation

import "fmt"

// User-facing reasons, in the clinic's locale.
const (
	ReasonRequired    = "Por favor, completa todos los campos obligatorios."
	ReasonEmail       = "Por favor, ingresa un email válido."
	ReasonPhone       = "Por favor, ingresa un número de teléfono válido."
	ReasonDateInvalid = "Por favor, ingresa una fecha válida."
	ReasonDatePast    = "La fecha de la cita no puede ser anterior a hoy."
)

// Error is the single user-correctable failure raised while validating a
// request. Field names the first offending input.
type Error struct {
	Field  string `json:"field"`
	Reason string `json:"error"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func newError(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}
