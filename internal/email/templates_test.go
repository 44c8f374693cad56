package email

import (
	"strings"
	"testing"
)

func TestRenderIncludesCode(t *testing.T) {
	msg, err := Render(TemplateSignup, "a@x.com", Data{Name: "Ana", Code: "123456"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.To != "a@x.com" {
		t.Fatalf("unexpected to: %s", msg.To)
	}
	if !strings.Contains(msg.Body, "123456") || !strings.Contains(msg.Body, "Ana") {
		t.Fatalf("body missing data: %q", msg.Body)
	}
}

func TestRenderDefaultsName(t *testing.T) {
	msg, err := Render(TemplateVerification, "a@x.com", Data{Code: "1"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(msg.Body, "Hi there,") {
		t.Fatalf("unexpected greeting: %q", msg.Body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render(Template("nope"), "a@x.com", Data{}); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
