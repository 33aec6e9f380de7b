package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	httpmiddleware "github.com/wolfman30/clinic-appointments/internal/http/middleware"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	Appointments *appointments.Handler

	// Gatherer backs /metrics. Optional.
	Gatherer           prometheus.Gatherer
	CORSAllowedOrigins []string
	// Limiter throttles /api. Optional.
	Limiter httpmiddleware.Limiter
	// ServiceName labels server spans.
	ServiceName string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Appointments == nil {
		panic("router: appointments handler required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(httpmiddleware.RequestLogger(logger))

	r.Get("/health", health)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Limiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.Limiter, logger))
		}
		cfg.Appointments.RegisterRoutes(api)
	})

	name := cfg.ServiceName
	if name == "" {
		name = "clinic-appointments"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
