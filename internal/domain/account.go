package domain

import (
	"strings"
	"time"
)

// Channel identifica un medio de contacto verificable.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

const (
	RolePlatformAdmin     = "platform_admin"
	RoleComplianceOfficer = "compliance_officer"
	RoleTreasuryManager   = "treasury_manager"
	RoleSupportAgent      = "support_agent"
	RoleBasicConsumer     = "basic_consumer"
)

const (
	UserTypeConsumer  = "consumer"
	UserTypeUser      = "user"
	UserTypeMerchant  = "merchant"
	UserTypeSecondary = "secondary_user"
)

// Lifecycle es el estado derivado de los flags de la cuenta.
type Lifecycle string

const (
	LifecyclePending  Lifecycle = "pending"
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
	LifecycleBlocked  Lifecycle = "blocked"
	LifecycleDeleted  Lifecycle = "deleted"
)

// PrivilegedRoles son los roles que solo entran por el login de administracion.
var PrivilegedRoles = []string{
	RolePlatformAdmin,
	RoleComplianceOfficer,
	RoleTreasuryManager,
	RoleSupportAgent,
}

// Account es el registro de identidad: credenciales, verificacion y flags de ciclo de vida.
// Los codigos OTP viven inline como digest + timestamp de emision.
type Account struct {
	ID                 string     `json:"id"`
	Seq                int64      `json:"-"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Email              string     `json:"email,omitempty"`
	Mobile             string     `json:"mobile,omitempty"`
	PasswordHash       string     `json:"-"`
	PINDigest          string     `json:"-"`
	Role               string     `json:"role"`
	UserType           string     `json:"user_type"`
	AccountType        string     `json:"account_type,omitempty"`
	IsEmailVerified    bool       `json:"is_email_verified"`
	IsMobileVerified   bool       `json:"is_mobile_verified"`
	IsActive           bool       `json:"is_active"`
	IsBlocked          bool       `json:"is_blocked"`
	IsDeleted          bool       `json:"is_deleted"`
	EmailCodeDigest    string     `json:"-"`
	EmailCodeIssuedAt  *time.Time `json:"-"`
	MobileCodeDigest   string     `json:"-"`
	MobileCodeIssuedAt *time.Time `json:"-"`
	PasswordResetToken string     `json:"-"`
	AccountNumber      string     `json:"account_number,omitempty"`
	QRCode             string     `json:"qr_code,omitempty"`
	ReferralCode       string     `json:"referral_code,omitempty"`
	ReferredBy         string     `json:"referred_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Lifecycle deriva el estado publico. Los flags son la unica fuente de verdad.
func (a Account) Lifecycle() Lifecycle {
	switch {
	case a.IsDeleted:
		return LifecycleDeleted
	case a.IsBlocked:
		return LifecycleBlocked
	case !a.IsActive:
		return LifecycleInactive
	case !a.IsEmailVerified && !a.IsMobileVerified:
		return LifecyclePending
	default:
		return LifecycleActive
	}
}

// IsPrivileged indica si el rol pertenece al staff de la plataforma.
func (a Account) IsPrivileged() bool {
	for _, r := range PrivilegedRoles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// CodeState devuelve el digest y la fecha de emision del canal.
func (a Account) CodeState(ch Channel) (string, *time.Time) {
	if ch == ChannelEmail {
		return a.EmailCodeDigest, a.EmailCodeIssuedAt
	}
	return a.MobileCodeDigest, a.MobileCodeIssuedAt
}

// Identifier devuelve el valor del canal (email o movil).
func (a Account) Identifier(ch Channel) string {
	if ch == ChannelEmail {
		return a.Email
	}
	return a.Mobile
}
