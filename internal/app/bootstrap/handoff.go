package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	appconfig "github.com/wolfman30/clinic-appointments/internal/config"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
	"github.com/wolfman30/clinic-appointments/internal/submission"
	"github.com/wolfman30/clinic-appointments/internal/templates"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

// AWSConfigLoader loads the shared AWS SDK config. It is only called when
// SQS or SES is selected.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// HandoffDeps carries what the hand-off transports need beyond config.
type HandoffDeps struct {
	Directory appointments.ServiceDirectory
	Renderer  *templates.Renderer
	Metrics   *metrics.WorkflowMetrics
	LoadAWS   AWSConfigLoader
	Logger    *logging.Logger
}

// Handoff is the assembled backend hand-off.
type Handoff struct {
	Fanout *submission.Fanout
	// Queue is set for SUBMIT_TRANSPORT=memory so a local consumer can drain it.
	Queue *submission.MemoryQueue

	closers []func() error
}

// Close releases broker connections.
func (h *Handoff) Close() error {
	var errs []error
	for _, c := range h.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildEmailSender selects the confirmation email provider.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("SENDGRID_API_KEY empty; confirmation emails will only be logged")
			return notify.NewStubEmailSender(logger), nil
		}
		return sender, nil
	case "ses":
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: ses email requires aws config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

// BuildHandoff assembles the transport named by SUBMIT_TRANSPORT plus the
// patient confirmation email into one Fanout.
func BuildHandoff(ctx context.Context, cfg *appconfig.Config, deps HandoffDeps) (*Handoff, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	h := &Handoff{}
	var targets []submission.Target

	switch cfg.SubmitTransport {
	case "", "log":
		targets = append(targets, submission.Target{Name: "log", Submitter: submission.NewLogSubmitter(logger)})
	case "memory":
		h.Queue = submission.NewMemoryQueue(0)
		targets = append(targets, submission.Target{Name: "memory", Submitter: submission.NewQueueSubmitter(h.Queue, deps.Directory)})
	case "sqs":
		if strings.TrimSpace(cfg.SubmitQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: SUBMIT_QUEUE_URL required for sqs transport")
		}
		if deps.LoadAWS == nil {
			return nil, fmt.Errorf("bootstrap: sqs transport requires aws config")
		}
		awsCfg, err := deps.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		queue := submission.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SubmitQueueURL)
		targets = append(targets, submission.Target{Name: "sqs", Submitter: submission.NewQueueSubmitter(queue, deps.Directory)})
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return nil, fmt.Errorf("bootstrap: AMQP_URL required for amqp transport")
		}
		queue, err := submission.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, queue.Close)
		targets = append(targets, submission.Target{Name: "amqp", Submitter: submission.NewQueueSubmitter(queue, deps.Directory)})
	default:
		return nil, fmt.Errorf("bootstrap: unknown submit transport %q", cfg.SubmitTransport)
	}

	sender, err := BuildEmailSender(ctx, cfg, deps.LoadAWS, logger)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	targets = append(targets, submission.Target{
		Name: "email",
		Submitter: submission.NewMailSubmitter(sender, submission.MailConfig{
			ClinicName: cfg.ClinicName,
			Directory:  deps.Directory,
			Renderer:   deps.Renderer,
			Location:   loc,
		}),
	})

	h.Fanout = submission.NewFanout(logger, targets,
		submission.WithTimeout(cfg.HandoffTimeout),
		submission.WithMetrics(deps.Metrics),
	)
	logger.Info("backend hand-off configured", "targets", strings.Join(h.Fanout.Targets(), ","))
	return h, nil
}
