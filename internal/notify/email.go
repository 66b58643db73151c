// ABOUTME: SMTP email delivery using go-mail. Dial-per-send; notification mail is sporadic.
// ABOUTME: One message per recipient since bodies are personalized.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// SmtpConfig holds SMTP connection parameters sourced from env vars.
type SmtpConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	TLS      bool
}

// Mailer sends one rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPMailer is the production Mailer.
type SMTPMailer struct {
	cfg SmtpConfig
}

// NewSMTPMailer returns a Mailer sending through cfg.
func NewSMTPMailer(cfg SmtpConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers an HTML+plaintext multipart email to a single recipient.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	return EmailSend(ctx, m.cfg, to, subject, htmlBody, textBody)
}

// EmailSend sends an HTML+plaintext multipart email using DialAndSend
// (no persistent SMTP connection).
func EmailSend(ctx context.Context, cfg SmtpConfig, to, subject, htmlBody, textBody string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("email send: no recipient")
	}

	subject = sanitizeSubject(subject)

	msg := mail.NewMsg()
	if err := msg.FromFormat("PMTweb", cfg.From); err != nil {
		return fmt.Errorf("email send: set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("email send: set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("email send: create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}
