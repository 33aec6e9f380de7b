package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-appointments/internal/appointments"
	"github.com/wolfman30/clinic-appointments/internal/locale"
	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/templates"
)

// MailSubmitter emails the patient the confirmation promised by the success
// message.
type MailSubmitter struct {
	sender     notify.EmailSender
	renderer   *templates.Renderer
	directory  appointments.ServiceDirectory
	clinicName string
	location   *time.Location
}

// MailConfig configures MailSubmitter.
type MailConfig struct {
	ClinicName string
	Directory  appointments.ServiceDirectory
	Renderer   *templates.Renderer
	Location   *time.Location
}

func NewMailSubmitter(sender notify.EmailSender, cfg MailConfig) *MailSubmitter {
	if sender == nil {
		panic("submission: email sender required")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = templates.NewRenderer()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &MailSubmitter{
		sender:     sender,
		renderer:   cfg.Renderer,
		directory:  cfg.Directory,
		clinicName: cfg.ClinicName,
		location:   cfg.Location,
	}
}

// Message renders the confirmation email for req.
func (s *MailSubmitter) Message(req appointments.AppointmentRequest) (notify.EmailMessage, error) {
	day := req.Day
	if day.IsZero() {
		parsed, err := locale.ParseDate(req.Date, s.location)
		if err != nil {
			return notify.EmailMessage{}, fmt.Errorf("submission: appointment date %q: %w", req.Date, err)
		}
		day = parsed
	}
	serviceName := req.ServiceCode
	if s.directory != nil {
		serviceName = s.directory.DisplayNameFor(req.ServiceCode)
	}
	subject, body, err := s.renderer.ConfirmationEmail(req.TemplateData(s.clinicName, serviceName, locale.LongDate(day)))
	if err != nil {
		return notify.EmailMessage{}, fmt.Errorf("submission: render email: %w", err)
	}
	return notify.EmailMessage{
		To:      strings.TrimSpace(req.Email),
		ToName:  req.PatientName,
		Subject: subject,
		Body:    body,
	}, nil
}

func (s *MailSubmitter) Send(ctx context.Context, req appointments.AppointmentRequest) error {
	msg, err := s.Message(req)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

var _ appointments.Submitter = (*MailSubmitter)(nil)
