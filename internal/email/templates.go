package email

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template identifica un correo transaccional.
type Template string

const (
	TemplateSignup         Template = "signup"
	TemplateVerification   Template = "verification"
	TemplateForgotPassword Template = "forgot_password"
	TemplateAdminReset     Template = "admin_reset"
	TemplateChangeEmail    Template = "change_email"
)

// Data son los valores disponibles en las plantillas.
type Data struct {
	Name     string
	Code     string
	ResetURL string
}

type layout struct {
	subject string
	body    *template.Template
}

var layouts = map[Template]layout{
	TemplateSignup: {
		subject: "Welcome to Monay",
		body: template.Must(template.New("signup").Parse(
			"Hi {{.Name}},\n\nThanks for signing up. Your email verification code is {{.Code}}.\n")),
	},
	TemplateVerification: {
		subject: "Verify your email",
		body: template.Must(template.New("verification").Parse(
			"Hi {{.Name}},\n\nYour verification code is {{.Code}}.\n")),
	},
	TemplateForgotPassword: {
		subject: "Reset your password",
		body: template.Must(template.New("forgot_password").Parse(
			"Hi {{.Name}},\n\nUse the code {{.Code}} to reset your password. If you did not request it, ignore this email.\n")),
	},
	TemplateAdminReset: {
		subject: "Admin password reset",
		body: template.Must(template.New("admin_reset").Parse(
			"Hi {{.Name}},\n\nOpen {{.ResetURL}} to choose a new password.\n")),
	},
	TemplateChangeEmail: {
		subject: "Confirm your new email",
		body: template.Must(template.New("change_email").Parse(
			"Hi {{.Name}},\n\nYour code to confirm this email address is {{.Code}}.\n")),
	},
}

// Render construye el mensaje para el destinatario.
func Render(tpl Template, to string, data Data) (Message, error) {
	l, ok := layouts[tpl]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", tpl)
	}
	if data.Name == "" {
		data.Name = "there"
	}
	var buf bytes.Buffer
	if err := l.body.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", tpl, err)
	}
	return Message{To: to, Subject: l.subject, Body: buf.String()}, nil
}
