// Package submission hands confirmed appointment requests to the systems
// behind the clinic. Every transport is fire-and-forget.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	"github.com/wolfman30/clinic-appointments/internal/events"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// LogSubmitter records the hand-off in the service log only.
type LogSubmitter struct {
	logger *logging.Logger
}

func NewLogSubmitter(logger *logging.Logger) *LogSubmitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSubmitter{logger: logger}
}

func (s *LogSubmitter) Send(_ context.Context, req appointments.AppointmentRequest) error {
	s.logger.Info("sending appointment to backend",
		"request_id", req.ID,
		"session_id", req.SessionID,
		"service_code", req.ServiceCode,
		"date", req.Date,
		"time", req.Time,
	)
	return nil
}

// Queue accepts encoded event envelopes.
type Queue interface {
	Send(ctx context.Context, body string) error
}

// QueueSubmitter publishes an AppointmentRequestedV1 envelope per request.
type QueueSubmitter struct {
	queue     Queue
	directory appointments.ServiceDirectory
	now       func() time.Time
}

func NewQueueSubmitter(queue Queue, directory appointments.ServiceDirectory) *QueueSubmitter {
	if queue == nil {
		panic("submission: queue required")
	}
	return &QueueSubmitter{queue: queue, directory: directory, now: time.Now}
}

// Event builds the payload published for req.
func (s *QueueSubmitter) Event(req appointments.AppointmentRequest) events.AppointmentRequestedV1 {
	serviceName := req.ServiceCode
	if s.directory != nil {
		serviceName = s.directory.DisplayNameFor(req.ServiceCode)
	}
	return events.AppointmentRequestedV1{
		RequestID:   req.ID,
		SessionID:   req.SessionID,
		PatientName: req.PatientName,
		Phone:       req.Phone,
		Email:       req.Email,
		Date:        req.Date,
		Time:        req.Time,
		ServiceCode: req.ServiceCode,
		ServiceName: serviceName,
		Symptoms:    req.Symptoms,
		ConfirmedAt: s.now().UTC(),
	}
}

func (s *QueueSubmitter) Send(ctx context.Context, req appointments.AppointmentRequest) error {
	env, err := events.NewEnvelope("session:"+req.SessionID, req.ID, s.Event(req))
	if err != nil {
		return fmt.Errorf("submission: build envelope: %w", err)
	}
	body, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("submission: %w", err)
	}
	if err := s.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("submission: publish: %w", err)
	}
	return nil
}

var (
	_ appointments.Submitter = (*LogSubmitter)(nil)
	_ appointments.Submitter = (*QueueSubmitter)(nil)
)
