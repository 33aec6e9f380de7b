package submission

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// DefaultTimeout bounds a single transport's hand-off.
const DefaultTimeout = 10 * time.Second

// Target is a named transport.
type Target struct {
	Name      string
	Submitter appointments.Submitter
}

// Fanout sends each request to every target in the background, detached
// from the caller's cancellation. Send never reports an error. Once Wait has
// been called, later sends run inline on the caller's goroutine.
type Fanout struct {
	targets []Target
	timeout time.Duration
	metrics *metrics.WorkflowMetrics
	logger  *logging.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// FanoutOption customizes a Fanout.
type FanoutOption func(*Fanout)

// WithTimeout sets the per-target timeout.
func WithTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMetrics records hand-off outcomes per transport.
func WithMetrics(m *metrics.WorkflowMetrics) FanoutOption {
	return func(f *Fanout) { f.metrics = m }
}

func NewFanout(logger *logging.Logger, targets []Target, opts ...FanoutOption) *Fanout {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Fanout{timeout: DefaultTimeout, logger: logger}
	for _, t := range targets {
		if t.Submitter != nil {
			f.targets = append(f.targets, t)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Targets returns the configured transport names.
func (f *Fanout) Targets() []string {
	names := make([]string, len(f.targets))
	for i, t := range f.targets {
		names[i] = t.Name
	}
	return names
}

func (f *Fanout) Send(ctx context.Context, req appointments.AppointmentRequest) error {
	detached := context.WithoutCancel(ctx)

	f.mu.Lock()
	if f.draining {
		f.mu.Unlock()
		f.logger.Warn("appointment hand-off during shutdown", "request_id", req.ID)
		for _, t := range f.targets {
			f.deliver(detached, t, req)
		}
		return nil
	}
	f.wg.Add(len(f.targets))
	f.mu.Unlock()

	for _, t := range f.targets {
		go func(t Target) {
			defer f.wg.Done()
			f.deliver(detached, t, req)
		}(t)
	}
	return nil
}

func (f *Fanout) deliver(ctx context.Context, t Target, req appointments.AppointmentRequest) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	err := t.Submitter.Send(ctx, req)
	f.metrics.ObserveHandoff(t.Name, err)
	if err != nil {
		f.logger.Error("appointment hand-off failed", "transport", t.Name, "request_id", req.ID, "error", err)
		return
	}
	f.logger.Debug("appointment handed off", "transport", t.Name, "request_id", req.ID)
}

// Wait blocks until in-flight hand-offs finish or ctx is done. No new
// background hand-offs start after Wait is called.
func (f *Fanout) Wait(ctx context.Context) error {
	f.mu.Lock()
	f.draining = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ appointments.Submitter = (*Fanout)(nil)
