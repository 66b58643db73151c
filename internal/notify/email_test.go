// ABOUTME: Tests for SMTP email delivery via go-mail.
// ABOUTME: TestEmailSend_BasicDelivery requires Mailpit on localhost:1025 (skips if unavailable).
package notify_test

import (
	"context"
	"testing"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/notify"
)

func TestEmailSend_BasicDelivery(t *testing.T) {
	cfg := notify.SmtpConfig{
		Host: "localhost",
		Port: 1025,
		From: "test@pmtweb.local",
	}
	err := notify.NewSMTPMailer(cfg).Send(context.Background(),
		"recipient@example.com",
		"Test Subject",
		"<h1>HTML Body</h1>",
		"Text Body",
	)
	// If Mailpit not running, skip rather than fail.
	if err != nil {
		t.Skipf("SMTP not available (Mailpit required): %v", err)
	}
}

func TestEmailSend_EmptyRecipient(t *testing.T) {
	cfg := notify.SmtpConfig{Host: "localhost", Port: 1025, From: "test@pmtweb.local"}
	if err := notify.EmailSend(context.Background(), cfg, "  ", "Subject", "<p>html</p>", "text"); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestEmailSend_InvalidHost(t *testing.T) {
	cfg := notify.SmtpConfig{
		Host: "localhost",
		Port: 19999, // unlikely to be listening
		From: "test@pmtweb.local",
	}
	err := notify.EmailSend(context.Background(), cfg, "recipient@example.com", "Subject", "<p>html</p>", "text")
	if err == nil {
		t.Error("expected error for unreachable SMTP host")
	}
}
