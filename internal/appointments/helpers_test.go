package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-appointments/internal/catalog"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
	"github.com/wolfman30/clinic-appointments/internal/session"
	"github.com/wolfman30/clinic-appointments/internal/validation"
)

var fixedNow = time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

type shown struct {
	sessionID string
	message   string
	severity  notify.Severity
}

type recordingPresenter struct {
	mu    sync.Mutex
	shown []shown
}

func (p *recordingPresenter) Show(ctx context.Context, message string, severity notify.Severity) (notify.Notification, error) {
	id, _ := session.IDFromContext(ctx)
	p.mu.Lock()
	p.shown = append(p.shown, shown{sessionID: id, message: message, severity: severity})
	p.mu.Unlock()
	return notify.Notification{SessionID: id, Message: message, Severity: severity}, nil
}

func (p *recordingPresenter) all() []shown {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shown(nil), p.shown...)
}

type recordingSubmitter struct {
	mu   sync.Mutex
	sent []AppointmentRequest
	err  error
}

func (s *recordingSubmitter) Send(_ context.Context, req AppointmentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return s.err
}

func (s *recordingSubmitter) requests() []AppointmentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppointmentRequest(nil), s.sent...)
}

// manualTimer hands out timer channels that fire only when the test says so.
type manualTimer struct {
	registered chan chan time.Time
	delays     chan time.Duration
}

func newManualTimer() *manualTimer {
	return &manualTimer{
		registered: make(chan chan time.Time, 8),
		delays:     make(chan time.Duration, 8),
	}
}

func (m *manualTimer) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.delays <- d
	m.registered <- ch
	return ch
}

func (m *manualTimer) Fire(t *testing.T) time.Duration {
	t.Helper()
	select {
	case ch := <-m.registered:
		ch <- fixedNow
		return <-m.delays
	case <-time.After(2 * time.Second):
		t.Fatal("submission delay was never scheduled")
		return 0
	}
}

type harness struct {
	presenter *recordingPresenter
	submitter *recordingSubmitter
	timer     *manualTimer
	registry  *prometheus.Registry
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := &harness{
		presenter: &recordingPresenter{},
		submitter: &recordingSubmitter{},
		timer:     newManualTimer(),
		registry:  reg,
	}
	h.deps = Deps{
		Presenter:   h.presenter,
		Directory:   catalog.Directory{},
		Validator:   &validation.Validator{Now: func() time.Time { return fixedNow }, Location: time.UTC},
		Submitter:   h.submitter,
		Metrics:     metrics.NewWorkflowMetrics(reg),
		ClinicName:  "Consultorio Médico",
		SubmitDelay: 2 * time.Second,
		Now:         func() time.Time { return fixedNow },
		After:       h.timer.After,
	}
	return h
}

func (h *harness) workflow(ctx context.Context) *Workflow {
	return NewWorkflow(ctx, "session-1", h.deps)
}

func validFields() RawFields {
	return RawFields{
		PatientName: "Ana Ruiz",
		Phone:       "+52 (55) 1234-5678",
		Email:       "ana@example.com",
		Date:        "2026-10-18",
		Time:        "10:30",
		ServiceCode: "cardiologia",
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

var errBackend = errors.New("backend unavailable")
