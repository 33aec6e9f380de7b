// Package session carries the browser session id through request contexts.
package session

import "context"

type ctxKey string

const sessionKey ctxKey = "clinic.session_id"

// HeaderName is the request header the page sends its session id in.
const HeaderName = "X-Session-Id"

// WithID stores the session id in context.
func WithID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// IDFromContext extracts the session id if present.
func IDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok && id != ""
}
