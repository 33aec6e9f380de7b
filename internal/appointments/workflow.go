// Package appointments drives a patient's appointment request from form
// submission through confirmation to the backend hand-off.
package appointments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-appointments/internal/locale"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
	"github.com/wolfman30/clinic-appointments/internal/session"
	"github.com/wolfman30/clinic-appointments/internal/templates"
	"github.com/wolfman30/clinic-appointments/internal/validation"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.appointments")

// DefaultSubmitDelay is the pause between Confirm and the success message.
const DefaultSubmitDelay = 2 * time.Second

// State is the position of a workflow in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateConfirmation State = "confirmation"
	StateSubmitting   State = "submitting"
)

// ServiceDirectory resolves service codes to display names.
type ServiceDirectory interface {
	DisplayNameFor(code string) string
	Known(code string) bool
}

// Submitter hands a confirmed request to the backend. Errors are logged by
// the workflow and never reach the patient.
type Submitter interface {
	Send(ctx context.Context, req AppointmentRequest) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req AppointmentRequest) error

func (f SubmitterFunc) Send(ctx context.Context, req AppointmentRequest) error { return f(ctx, req) }

// Deps are the collaborators shared by every workflow.
type Deps struct {
	Presenter  notify.Presenter
	Directory  ServiceDirectory
	Validator  *validation.Validator
	Submitter  Submitter
	Renderer   *templates.Renderer
	Metrics    *metrics.WorkflowMetrics
	Logger     *logging.Logger
	ClinicName string

	// SubmitDelay defaults to DefaultSubmitDelay.
	SubmitDelay time.Duration
	// Now and After default to the wall clock.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Validator == nil {
		d.Validator = validation.New(time.UTC)
	}
	if d.Renderer == nil {
		d.Renderer = templates.NewRenderer()
	}
	if d.Submitter == nil {
		logger := d.Logger
		d.Submitter = SubmitterFunc(func(_ context.Context, req AppointmentRequest) error {
			logger.Info("sending appointment to backend", "request_id", req.ID, "service_code", req.ServiceCode)
			return nil
		})
	}
	if d.SubmitDelay <= 0 {
		d.SubmitDelay = DefaultSubmitDelay
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.After == nil {
		d.After = time.After
	}
	return d
}

// Snapshot is a read-only view of a workflow.
type Snapshot struct {
	SessionID    string        `json:"session_id"`
	State        State         `json:"state"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	Draft        RawFields     `json:"draft"`
	LastSeen     time.Time     `json:"last_seen"`
}

// Workflow is the appointment controller of a single session. Its operations
// are serialised; the only asynchronous step is the delay after Confirm.
type Workflow struct {
	id   string
	deps Deps
	base context.Context

	mu           sync.Mutex
	state        State
	pending      *AppointmentRequest
	confirmation *Confirmation
	draft        RawFields
	task         *Task
	lastSeen     time.Time
}

// NewWorkflow creates an idle workflow. Cancelling base abandons a pending
// submission delay.
func NewWorkflow(base context.Context, sessionID string, deps Deps) *Workflow {
	if base == nil {
		base = context.Background()
	}
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.With("session_id", sessionID)
	return &Workflow{
		id:       sessionID,
		deps:     deps,
		base:     base,
		state:    StateIdle,
		lastSeen: deps.Now(),
	}
}

// ID returns the session id.
func (w *Workflow) ID() string { return w.id }

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns the current state, pending confirmation and form draft.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{SessionID: w.id, State: w.state, Draft: w.draft, LastSeen: w.lastSeen}
	if w.confirmation != nil {
		c := *w.confirmation
		snap.Confirmation = &c
	}
	return snap
}

// SaveDraft keeps the form contents between page interactions.
func (w *Workflow) SaveDraft(fields RawFields) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.draft = fields
}

// Submit validates the form and, when valid, opens the confirmation step.
// Nothing is sent to the backend yet. A validation failure leaves the state
// untouched and is shown to the patient as a warning.
func (w *Workflow) Submit(ctx context.Context, fields RawFields) (*Confirmation, error) {
	ctx, span := tracer.Start(ctx, "appointments.submit", trace.WithAttributes(
		attribute.String("clinic.session_id", w.id),
		attribute.String("clinic.service_code", fields.ServiceCode),
	))
	defer span.End()
	ctx = session.WithID(ctx, w.id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.state != StateIdle {
		span.SetStatus(codes.Error, ErrRequestPending.Error())
		return nil, ErrRequestPending
	}
	w.draft = fields

	day, verr := fields.Validate(w.deps.Validator)
	if verr != nil {
		w.deps.Metrics.ObserveSubmission(false, verr.Field)
		w.deps.Logger.Info("appointment request rejected", "field", verr.Field, "reason", verr.Reason)
		w.show(ctx, verr.Reason, notify.SeverityWarning)
		span.SetAttributes(attribute.String("clinic.invalid_field", verr.Field))
		return nil, verr
	}

	req := newRequest(uuid.NewString(), w.id, fields, day, w.deps.Now())
	serviceName := req.ServiceCode
	if w.deps.Directory != nil {
		serviceName = w.deps.Directory.DisplayNameFor(req.ServiceCode)
		known := w.deps.Directory.Known(req.ServiceCode)
		span.SetAttributes(attribute.Bool("clinic.known_service", known))
		if !known {
			w.deps.Metrics.ObserveUnlistedService()
			w.deps.Logger.Info("appointment request for unlisted service", "service_code", req.ServiceCode)
		}
	}
	formatted := locale.LongDate(day)
	details, err := w.deps.Renderer.ConfirmationDetails(req.TemplateData(w.deps.ClinicName, serviceName, formatted))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: render confirmation: %w", err)
	}

	w.pending = &req
	w.confirmation = &Confirmation{
		Request:       req,
		FormattedDate: formatted,
		ServiceName:   serviceName,
		Details:       details,
	}
	w.transition(StateConfirmation)
	w.deps.Metrics.ObserveSubmission(true, "")
	w.deps.Logger.Info("appointment request awaiting confirmation", "request_id", req.ID, "service_code", req.ServiceCode)

	c := *w.confirmation
	return &c, nil
}

// Confirm shows the processing notice and starts the delayed completion.
// The returned task finishes once the success message has been shown, the
// form cleared and the request handed to the backend.
func (w *Workflow) Confirm(ctx context.Context) (*Task, error) {
	ctx, span := tracer.Start(ctx, "appointments.confirm", trace.WithAttributes(
		attribute.String("clinic.session_id", w.id),
	))
	defer span.End()
	ctx = session.WithID(ctx, w.id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.state != StateConfirmation || w.pending == nil {
		span.SetStatus(codes.Error, ErrNotAwaitingConfirmation.Error())
		return nil, ErrNotAwaitingConfirmation
	}

	w.show(ctx, MessageProcessing, notify.SeverityInfo)
	req := *w.pending
	w.transition(StateSubmitting)

	task := newTask()
	w.task = task
	go w.complete(trace.SpanContextFromContext(ctx), task, req)
	return task, nil
}

// Cancel discards the pending request without notifying the patient.
func (w *Workflow) Cancel(ctx context.Context) error {
	_, span := tracer.Start(ctx, "appointments.cancel", trace.WithAttributes(
		attribute.String("clinic.session_id", w.id),
	))
	defer span.End()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.state != StateConfirmation {
		span.SetStatus(codes.Error, ErrNotAwaitingConfirmation.Error())
		return ErrNotAwaitingConfirmation
	}
	w.deps.Logger.Info("appointment request cancelled", "request_id", w.pending.ID)
	w.discard()
	w.transition(StateIdle)
	return nil
}

func (w *Workflow) complete(parent trace.SpanContext, task *Task, req AppointmentRequest) {
	started := w.deps.Now()
	select {
	case <-w.deps.After(w.deps.SubmitDelay):
	case <-w.base.Done():
		w.mu.Lock()
		w.discard()
		w.transition(StateIdle)
		w.task = nil
		w.mu.Unlock()
		w.deps.Logger.Warn("appointment submission abandoned", "request_id", req.ID, "error", w.base.Err())
		task.finish(w.base.Err())
		return
	}

	ctx := session.WithID(trace.ContextWithRemoteSpanContext(w.base, parent), w.id)

	w.mu.Lock()
	w.show(ctx, MessageScheduled, notify.SeveritySuccess)
	w.draft = RawFields{}
	w.discard()
	w.transition(StateIdle)
	w.task = nil
	w.lastSeen = w.deps.Now()
	w.mu.Unlock()
	w.deps.Metrics.ObserveSubmitDelay(w.deps.Now().Sub(started).Seconds())

	w.handoff(ctx, req)
	task.finish(nil)
}

func (w *Workflow) handoff(ctx context.Context, req AppointmentRequest) {
	ctx, span := tracer.Start(ctx, "appointments.handoff", trace.WithAttributes(
		attribute.String("clinic.session_id", w.id),
		attribute.String("clinic.service_code", req.ServiceCode),
	))
	defer span.End()

	if err := w.deps.Submitter.Send(ctx, req); err != nil {
		span.RecordError(err)
		w.deps.Logger.Error("appointment hand-off failed", "request_id", req.ID, "error", err)
	}
}

func (w *Workflow) show(ctx context.Context, message string, severity notify.Severity) {
	if w.deps.Presenter == nil {
		return
	}
	if _, err := w.deps.Presenter.Show(ctx, message, severity); err != nil {
		w.deps.Logger.Error("failed to show notification", "severity", severity, "error", err)
		return
	}
	w.deps.Metrics.ObserveNotification(string(severity))
}

func (w *Workflow) transition(to State) {
	from := w.state
	w.state = to
	w.deps.Metrics.ObserveTransition(string(from), string(to))
}

func (w *Workflow) discard() {
	w.pending = nil
	w.confirmation = nil
}

func (w *Workflow) touch() {
	w.lastSeen = w.deps.Now()
}

// idleSince reports when an idle workflow was last used. Busy workflows
// report false.
func (w *Workflow) idleSince() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen, w.state == StateIdle
}
