package appointments

import "errors"

var (
	// ErrRequestPending is returned by Submit while a request awaits
	// confirmation or is being submitted.
	ErrRequestPending = errors.New("appointments: a request is already pending")
	// ErrNotAwaitingConfirmation is returned by Confirm and Cancel outside the
	// confirmation step.
	ErrNotAwaitingConfirmation = errors.New("appointments: no request awaiting confirmation")
	// ErrSessionNotFound is returned for unknown or evicted sessions.
	ErrSessionNotFound = errors.New("appointments: session not found")
)
