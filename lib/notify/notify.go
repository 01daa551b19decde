package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"causelist-backend/lib/portal"
	"causelist-backend/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("causelist.lib.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// Summary is what a finished lookup job reports.
type Summary struct {
	JobId   string
	Status  string
	Request portal.LookupRequest
	// Judges is the number of judges listed, Pdfs the number archived.
	Judges     int
	Pdfs       int
	OutputFile string
	Error      string
}

type Mailer struct {
	smtp SmtpConfig
	to   []string
}

// NewMailer returns nil if there is no server or nobody to notify, a nil
// Mailer sends nothing.
func NewMailer(config SmtpConfig, to []string) *Mailer {
	if config.Server == "" || len(to) == 0 {
		return nil
	}
	if config.Port == 0 {
		config.Port = 25
	}
	return &Mailer{smtp: config, to: to}
}

func subject(s Summary) string {
	return fmt.Sprintf(
		"Cause list %s: %s, %s (%s)",
		s.Status, s.Request.Complex, s.Request.District, s.Request.Date.String(),
	)
}

func body(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s finished with status %s.\n\n", s.JobId, s.Status)
	fmt.Fprintf(&b, "State: %s\nDistrict: %s\nCourt complex: %s\nDate: %s\n\n",
		s.Request.State, s.Request.District, s.Request.Complex, s.Request.Date.String())
	if s.Error != "" {
		fmt.Fprintf(&b, "%s\n", s.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "%d judges listed, %d cause list PDFs archived.\n", s.Judges, s.Pdfs)
	if s.OutputFile != "" {
		fmt.Fprintf(&b, "Result file: %s\n", s.OutputFile)
	}
	return b.String()
}

// Compose builds the notification, attaching the files at attachments.
func (m *Mailer) Compose(s Summary, attachments ...string) (*email.Email, error) {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Cause List Bot <%s>", m.smtp.EmailAddress)
	mail.To = m.to
	mail.Subject = subject(s)
	mail.Text = []byte(body(s))
	for _, path := range attachments {
		_, err := mail.AttachFile(path)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", path, err)
		}
	}
	return mail, nil
}

func (m *Mailer) Send(ctx context.Context, s Summary, attachments ...string) error {
	if m == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "mailer:Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", s.JobId),
		attribute.StringSlice("to", m.to),
	)

	mail, err := m.Compose(s, attachments...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compose email")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.smtp.Server, m.smtp.Port)
	err = mail.Send(addr, smtp.PlainAuth("", m.smtp.EmailAddress, m.smtp.Password, m.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
