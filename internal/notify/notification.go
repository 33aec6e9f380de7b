// Package notify presents transient, auto-dismissing status notifications to
// patients and sends the confirmation email.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-appointments/internal/session"
)

// DefaultTTL is how long a notification stays visible before it is dismissed.
const DefaultTTL = 5 * time.Second

// ErrNoSession is returned when a notification is shown outside a session.
var ErrNoSession = errors.New("notify: session id missing from context")

// ErrNotFound is returned when dismissing an unknown or expired notification.
var ErrNotFound = errors.New("notify: notification not found")

// Severity selects the styling of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// ParseSeverity maps free text onto a severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeveritySuccess:
		return SeveritySuccess
	case SeverityWarning:
		return SeverityWarning
	case SeverityDanger:
		return SeverityDanger
	default:
		return SeverityInfo
	}
}

// Title is the heading shown above the message.
func (s Severity) Title() string {
	switch s {
	case SeveritySuccess:
		return "¡Éxito!"
	case SeverityWarning:
		return "Advertencia"
	case SeverityDanger:
		return "Error"
	default:
		return "Información"
	}
}

// Icon is the icon name (Font Awesome, without prefix) for the severity.
func (s Severity) Icon() string {
	switch s {
	case SeveritySuccess:
		return "check-circle"
	case SeverityWarning:
		return "exclamation-triangle"
	case SeverityDanger:
		return "times-circle"
	default:
		return "info-circle"
	}
}

// Notification is one message shown to a session.
type Notification struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the notification has been auto-dismissed at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Presenter shows a message to the session carried by ctx.
type Presenter interface {
	Show(ctx context.Context, message string, severity Severity) (Notification, error)
}

// Feed is a Presenter that keeps notifications readable until they expire.
type Feed interface {
	Presenter
	Active(ctx context.Context, sessionID string) ([]Notification, error)
	Dismiss(ctx context.Context, sessionID, id string) error
}

func build(ctx context.Context, message string, severity Severity, now time.Time, ttl time.Duration) (Notification, error) {
	sessionID, ok := session.IDFromContext(ctx)
	if !ok {
		return Notification{}, ErrNoSession
	}
	severity = ParseSeverity(string(severity))
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	return Notification{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Severity:  severity,
		Title:     severity.Title(),
		Icon:      severity.Icon(),
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
