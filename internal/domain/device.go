package domain

import "time"

// DeviceBinding asocia el access token emitido con el dispositivo de una cuenta.
type DeviceBinding struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	AccessToken   string    `json:"-"`
	FirebaseToken string    `json:"-"`
	DeviceType    string    `json:"device_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeviceHistory es una fila append-only por login exitoso.
type DeviceHistory struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	DeviceType  string    `json:"device_type,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	DeviceModel string    `json:"device_model,omitempty"`
	OSVersion   string    `json:"os_version,omitempty"`
	AppVersion  string    `json:"app_version,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	IP          string    `json:"ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
