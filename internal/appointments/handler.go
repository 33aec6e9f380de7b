package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-appointments/internal/catalog"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/session"
	"github.com/wolfman30/clinic-appointments/internal/validation"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// HandlerConfig wires the HTTP handler.
type HandlerConfig struct {
	Registry      *Registry
	Validator     *validation.Validator
	Directory     catalog.Directory
	Contact       Contact
	Notifications notify.Feed
	// Stream serves the live notification WebSocket. Optional.
	Stream http.Handler
	Logger *logging.Logger
}

// Handler exposes the workflow over HTTP.
type Handler struct {
	registry      *Registry
	validator     *validation.Validator
	directory     catalog.Directory
	contact       Contact
	notifications notify.Feed
	stream        http.Handler
	logger        *logging.Logger
}

// NewHandler creates the appointments handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Registry == nil {
		panic("appointments: registry required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Validator == nil {
		cfg.Validator = cfg.Registry.deps.Validator
	}
	if cfg.Contact == (Contact{}) {
		cfg.Contact = NewContact("", "", "")
	}
	return &Handler{
		registry:      cfg.Registry,
		validator:     cfg.Validator,
		directory:     cfg.Directory,
		contact:       cfg.Contact,
		notifications: cfg.Notifications,
		stream:        cfg.Stream,
		logger:        cfg.Logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type stateResponse struct {
	SessionID string `json:"session_id"`
	State     State  `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// SessionContext resolves the session from the {sessionID} path parameter or
// the session header and stores its id in the request context.
func (h *Handler) SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if id == "" {
			id = strings.TrimSpace(r.Header.Get(session.HeaderName))
		}
		if _, err := h.registry.Get(id); err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
	})
}

func (h *Handler) workflow(w http.ResponseWriter, r *http.Request) (*Workflow, bool) {
	id, _ := session.IDFromContext(r.Context())
	wf, err := h.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return wf, true
}

// ListServices handles GET /api/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.directory.List()})
}

// GetContact handles GET /api/contact.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.contact)
}

// ValidateFieldRequest is a single live-validation check.
type ValidateFieldRequest struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ValidateFieldResponse reports the result of a live-validation check.
type ValidateFieldResponse struct {
	Valid bool   `json:"valid"`
	Field string `json:"field,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidateField handles POST /api/validate with the same rules Submit uses.
func (h *Handler) ValidateField(w http.ResponseWriter, r *http.Request) {
	var req ValidateFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp := ValidateFieldResponse{Valid: true, Field: req.Field}
	if verr := h.validator.Check(req.Field, req.Value, validation.ParseKind(req.Kind)); verr != nil {
		resp.Valid = false
		resp.Error = verr.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSession handles POST /api/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	wf := h.registry.Create()
	writeJSON(w, http.StatusCreated, stateResponse{SessionID: wf.ID(), State: wf.State()})
}

// GetSession handles GET /api/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

// SaveDraft handles PUT /api/sessions/{sessionID}/form.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	var fields RawFields
	if !decodeBody(w, r, &fields) {
		return
	}
	wf.SaveDraft(fields)
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

// SubmitAppointment handles POST /api/sessions/{sessionID}/appointment.
func (h *Handler) SubmitAppointment(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	var fields RawFields
	if !decodeBody(w, r, &fields) {
		return
	}

	confirmation, err := wf.Submit(r.Context(), fields)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Reason, Field: verr.Field})
		case errors.Is(err, ErrRequestPending):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to submit appointment", "session_id", wf.ID(), "error", err)
			writeError(w, http.StatusInternalServerError, "failed to submit appointment")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":        StateConfirmation,
		"confirmation": confirmation,
	})
}

// ConfirmAppointment handles POST /api/sessions/{sessionID}/appointment/confirm.
func (h *Handler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	if _, err := wf.Confirm(r.Context()); err != nil {
		if errors.Is(err, ErrNotAwaitingConfirmation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to confirm appointment", "session_id", wf.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to confirm appointment")
		return
	}
	writeJSON(w, http.StatusAccepted, stateResponse{SessionID: wf.ID(), State: StateSubmitting})
}

// CancelAppointment handles POST /api/sessions/{sessionID}/appointment/cancel.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	if err := wf.Cancel(r.Context()); err != nil {
		if errors.Is(err, ErrNotAwaitingConfirmation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to cancel appointment")
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{SessionID: wf.ID(), State: StateIdle})
}

// ListNotifications handles GET /api/sessions/{sessionID}/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	if h.notifications == nil {
		writeJSON(w, http.StatusOK, map[string]any{"notifications": []notify.Notification{}})
		return
	}
	active, err := h.notifications.Active(r.Context(), wf.ID())
	if err != nil {
		h.logger.Error("failed to list notifications", "session_id", wf.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": active})
}

// DismissNotification handles DELETE /api/sessions/{sessionID}/notifications/{notificationID}.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.workflow(w, r)
	if !ok {
		return
	}
	if h.notifications == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	err := h.notifications.Dismiss(r.Context(), wf.ID(), chi.URLParam(r, "notificationID"))
	switch {
	case errors.Is(err, notify.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	case err != nil:
		h.logger.Error("failed to dismiss notification", "session_id", wf.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to dismiss notification")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// StreamNotifications handles GET /api/sessions/{sessionID}/notifications/stream.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusNotFound, "notification stream disabled")
		return
	}
	h.stream.ServeHTTP(w, r)
}

// RegisterRoutes mounts the appointment API under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/contact", h.GetContact)
	r.Post("/validate", h.ValidateField)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionContext)
		r.Get("/", h.GetSession)
		r.Put("/form", h.SaveDraft)
		r.Post("/appointment", h.SubmitAppointment)
		r.Post("/appointment/confirm", h.ConfirmAppointment)
		r.Post("/appointment/cancel", h.CancelAppointment)
		r.Get("/notifications", h.ListNotifications)
		r.Get("/notifications/stream", h.StreamNotifications)
		r.Delete("/notifications/{notificationID}", h.DismissNotification)
	})
}
