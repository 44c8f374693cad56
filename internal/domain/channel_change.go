package domain

import "time"

type ChangeStatus string

const (
	ChangePending ChangeStatus = "pending"
	ChangeActive  ChangeStatus = "active"
	ChangeOld     ChangeStatus = "old"
)

// ChannelChange registra una solicitud de cambio de email o movil.
// Como maximo existe una fila pending por (cuenta, valor nuevo).
type ChannelChange struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	Channel      Channel      `json:"channel"`
	NewValue     string       `json:"new_value"`
	CodeDigest   string       `json:"-"`
	CodeIssuedAt *time.Time   `json:"-"`
	Status       ChangeStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
