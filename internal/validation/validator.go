// Package validation holds the field rules shared by request submission and
// live per-field feedback.
package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/clinic-appointments/internal/locale"
)

// Kind selects the rule applied to a field value.
type Kind string

const (
	KindText  Kind = "text"
	KindEmail Kind = "email"
	KindPhone Kind = "tel"
	KindDate  Kind = "date"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9 +\-()]+$`)
)

// ParseKind maps an HTML input type onto a rule. Anything that is not an
// email, phone or date input is checked for presence only.
func ParseKind(inputType string) Kind {
	switch strings.ToLower(strings.TrimSpace(inputType)) {
	case "email":
		return KindEmail
	case "tel", "phone":
		return KindPhone
	case "date":
		return KindDate
	default:
		return KindText
	}
}

// Validator applies the field rules. Dates are compared against the current
// day in Location.
type Validator struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a validator bound to the wall clock in loc.
func New(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{Now: time.Now, Location: loc}
}

// Validate reports whether value satisfies kind.
func (v *Validator) Validate(value string, kind Kind) bool {
	return v.Check("", value, kind) == nil
}

// Check validates a single value and names field in the returned error.
func (v *Validator) Check(field, value string, kind Kind) *Error {
	value = strings.TrimSpace(value)
	if value == "" {
		return newError(field, ReasonRequired)
	}
	switch kind {
	case KindEmail:
		if !emailPattern.MatchString(value) {
			return newError(field, ReasonEmail)
		}
	case KindPhone:
		if !phonePattern.MatchString(value) {
			return newError(field, ReasonPhone)
		}
	case KindDate:
		if _, err := v.ParseDate(value); err != nil {
			err.Field = field
			return err
		}
	}
	return nil
}

// ParseDate parses an appointment date and rejects days before today. The
// returned error has no field set.
func (v *Validator) ParseDate(value string) (time.Time, *Error) {
	date, err := locale.ParseDate(strings.TrimSpace(value), v.location())
	if err != nil {
		return time.Time{}, newError("", ReasonDateInvalid)
	}
	if date.Before(v.Today()) {
		return time.Time{}, newError("", ReasonDatePast)
	}
	return date, nil
}

// Today is midnight of the current day in the validator's location.
func (v *Validator) Today() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return locale.StartOfDay(now().In(v.location()))
}

func (v *Validator) location() *time.Location {
	if v.Location == nil {
		return time.UTC
	}
	return v.Location
}
