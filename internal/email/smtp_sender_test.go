package email

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"
)

func TestNewSMTPSenderValidates(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "no-reply@monay.com"}); err == nil {
		t.Fatalf("expected error without host")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.local", From: "not an address"}); err == nil {
		t.Fatalf("expected error for invalid from")
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.local", From: "no-reply@monay.com"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if s.addr != "smtp.local:587" {
		t.Fatalf("expected default port, got %s", s.addr)
	}
}

func TestComposeHeaders(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.local", From: "no-reply@monay.com", FromName: "Monay"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	raw := string(s.compose(mail.Address{Address: "a@x.com"}, Message{Subject: "Código", Body: "line1\nline2"}))
	if !strings.Contains(raw, "From: \"Monay\" <no-reply@monay.com>\r\n") {
		t.Fatalf("missing from header: %q", raw)
	}
	if !strings.Contains(raw, "To: <a@x.com>\r\n") {
		t.Fatalf("missing to header: %q", raw)
	}
	if !strings.Contains(raw, "Subject: =?utf-8?q?") {
		t.Fatalf("subject not encoded: %q", raw)
	}
	if !strings.Contains(raw, "@monay.com>\r\n") || !strings.Contains(raw, "Date: Fri, 01 Mar 2024 12:00:00 +0000") {
		t.Fatalf("missing message-id or date: %q", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\nline1\r\nline2") {
		t.Fatalf("unexpected body: %q", raw)
	}
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.local", From: "no-reply@monay.com"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := s.Send(context.Background(), Message{To: ""}); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}
