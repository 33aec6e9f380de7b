// Package intakeworker drains appointment requests published to the
// in-process queue when no external broker is configured.
package intakeworker

import (
	"context"
	"errors"

	"github.com/wolfman30/clinic-appointments/internal/events"
	"github.com/wolfman30/clinic-appointments/internal/submission"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

type receiver interface {
	Receive(ctx context.Context) (submission.Message, error)
}

// HandlerFunc processes one decoded request.
type HandlerFunc func(ctx context.Context, evt events.AppointmentRequestedV1) error

// Consumer reads envelopes from a queue until its context ends.
type Consumer struct {
	queue  receiver
	handle HandlerFunc
	logger *logging.Logger
}

func NewConsumer(queue receiver, logger *logging.Logger) *Consumer {
	if queue == nil {
		panic("intake: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Consumer{queue: queue, logger: logger}
	c.handle = c.logRequest
	return c
}

// WithHandler replaces the default handler, which only logs.
func (c *Consumer) WithHandler(fn HandlerFunc) *Consumer {
	if fn != nil {
		c.handle = fn
	}
	return c
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.Error("intake: receive failed", "error", err)
			continue
		}
		if err := c.process(ctx, msg); err != nil {
			c.logger.Error("intake: message dropped", "message_id", msg.ID, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg submission.Message) error {
	env, err := events.ParseEnvelope([]byte(msg.Body))
	if err != nil {
		return err
	}
	var evt events.AppointmentRequestedV1
	if err := env.Decode(&evt); err != nil {
		return err
	}
	return c.handle(ctx, evt)
}

func (c *Consumer) logRequest(_ context.Context, evt events.AppointmentRequestedV1) error {
	c.logger.Info("appointment request received",
		"request_id", evt.RequestID,
		"session_id", evt.SessionID,
		"service_code", evt.ServiceCode,
		"date", evt.Date,
		"time", evt.Time,
	)
	return nil
}
