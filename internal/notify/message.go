// Package notify entrega OTPs y avisos por SMS o email fuera del ciclo de la peticion.
package notify

import (
	"time"

	"monay-auth/internal/domain"
	"monay-auth/internal/email"
)

// Kind identifica el flujo que origino el mensaje.
type Kind string

const (
	KindSignup        Kind = "signup"
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindPINReset      Kind = "pin_reset"
	KindChannelChange Kind = "channel_change"
	KindAdminReset    Kind = "admin_reset"
)

// Message es una notificacion pendiente de entrega. Code, Text y ResetURL viajan en claro
// solo en memoria; el dead-letter lleva la version Redacted.
type Message struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id,omitempty"`
	Kind      Kind           `json:"kind,omitempty"`
	Channel   domain.Channel `json:"channel"`
	To        string         `json:"to"`
	Template  email.Template `json:"template,omitempty"`
	Name      string         `json:"name,omitempty"`
	Code      string         `json:"code,omitempty"`
	ResetURL  string         `json:"reset_url,omitempty"`
	Text      string         `json:"text,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Redacted devuelve una copia sin el codigo ni el contenido que lo incluye.
func (m Message) Redacted() Message {
	m.Code = ""
	m.Text = ""
	m.ResetURL = ""
	return m
}

// DeadLetter es un mensaje cuyos reintentos se agotaron.
type DeadLetter struct {
	Message  Message   `json:"message"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// Outcome etiqueta el resultado final de un envio.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeDeadLetter Outcome = "dead_letter"
	OutcomeDropped    Outcome = "dropped"
)

// ObserveFunc recibe el resultado final de cada mensaje (metricas).
type ObserveFunc func(ch domain.Channel, outcome Outcome)

func maskDestination(to string) string {
	if len(to) <= 4 {
		return "****"
	}
	return "****" + to[len(to)-4:]
}
