package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/wolfman30/clinic-appointments/internal/session"
)

// CORS allows the listed origins; "*" allows any. An empty list disables
// cross-origin access entirely.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", session.HeaderName, "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         600,
	})
}
