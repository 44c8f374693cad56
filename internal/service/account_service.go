package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/email"
	"monay-auth/internal/notify"
	"monay-auth/internal/repository"
	"monay-auth/internal/secret"
)

var (
	ErrNotConfigured   = errors.New("account service not configured")
	ErrAccountNotFound = errors.New("account not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrNotReissuable   = errors.New("notification cannot be reissued")
)

// passwordCost es el work factor fijo de bcrypt.
const passwordCost = 10

// Notifier programa una notificacion sin bloquear al caller.
type Notifier interface {
	Dispatch(msg notify.Message)
}

// PasswordHasher abstrae bcrypt para poder contar comparaciones en tests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (bcryptHasher) Compare(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// QRCodes genera el QR de la cuenta y resuelve su URL.
type QRCodes interface {
	Generate(ctx context.Context) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

// Recorder recibe contadores de resultado por operacion.
type Recorder interface {
	Workflow(operation, status string)
	OTPIssued(ch domain.Channel)
}

type nopRecorder struct{}

func (nopRecorder) Workflow(string, string) {}
func (nopRecorder) OTPIssued(domain.Channel) {}

// AccountDeps agrupa las dependencias del flujo de cuentas.
type AccountDeps struct {
	Accounts  repository.AccountRepository
	Devices   repository.DeviceRepository
	Changes   repository.ChannelChangeRepository
	Referrals repository.ReferralRepository
	Codec     secret.Codec
	Notifier  Notifier
	Tokens    *JWTService
	QR        QRCodes
	Limiter   OTPRateLimiter
	Passwords PasswordHasher
	Metrics   Recorder
	Policy    OTPPolicy
	DeviceTTL time.Duration
	BaseURL   string
	Now       func() time.Time
}

// AccountService implementa signup, OTP, login, credenciales y cambios de canal.
type AccountService struct {
	logger    *zap.Logger
	accounts  repository.AccountRepository
	devices   repository.DeviceRepository
	changes   repository.ChannelChangeRepository
	referrals repository.ReferralRepository
	codec     secret.Codec
	notifier  Notifier
	tokens    *JWTService
	qr        QRCodes
	limiter   OTPRateLimiter
	passwords PasswordHasher
	metrics   Recorder
	policy    OTPPolicy
	deviceTTL time.Duration
	baseURL   string
	now       func() time.Time
}

func NewAccountService(logger *zap.Logger, deps AccountDeps) (*AccountService, error) {
	if deps.Accounts == nil || deps.Devices == nil || deps.Changes == nil || deps.Referrals == nil {
		return nil, ErrNotConfigured
	}
	if deps.Codec == nil || deps.Tokens == nil || deps.Notifier == nil {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Passwords == nil {
		deps.Passwords = bcryptHasher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.DeviceTTL <= 0 {
		deps.DeviceTTL = 30 * 24 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &AccountService{
		logger:    logger,
		accounts:  deps.Accounts,
		devices:   deps.Devices,
		changes:   deps.Changes,
		referrals: deps.Referrals,
		codec:     deps.Codec,
		notifier:  deps.Notifier,
		tokens:    deps.Tokens,
		qr:        deps.QR,
		limiter:   deps.Limiter,
		passwords: deps.Passwords,
		metrics:   deps.Metrics,
		policy:    deps.Policy,
		deviceTTL: deps.DeviceTTL,
		baseURL:   deps.BaseURL,
		now:       deps.Now,
	}, nil
}

// findByIdentifier resuelve email o movil; found=false en miss.
func (s *AccountService) findByIdentifier(ctx context.Context, identifier string) (domain.Account, domain.Channel, bool, error) {
	value, ch := normalizeIdentifier(identifier)
	if value == "" {
		return domain.Account{}, ch, false, nil
	}
	var (
		a   domain.Account
		err error
	)
	if ch == domain.ChannelEmail {
		a, err = s.accounts.GetByEmail(ctx, value)
	} else {
		a, err = s.accounts.GetByMobile(ctx, value)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, ch, false, nil
	}
	if err != nil {
		return domain.Account{}, ch, false, err
	}
	return a, ch, true, nil
}

func (s *AccountService) loadAccount(ctx context.Context, op, id string) (domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, apperr.NotFound(op, ErrAccountNotFound)
	}
	if err != nil {
		return domain.Account{}, apperr.Infra(op, err)
	}
	return a, nil
}

func (s *AccountService) allow(op, key string) error {
	if s.limiter != nil && !s.limiter.Allow(key) {
		s.metrics.Workflow(op, "rate_limited")
		return apperr.Validation(op, ErrRateLimited)
	}
	return nil
}

// newCode devuelve el OTP en claro (solo para el envio) y su digest.
func (s *AccountService) newCode() (string, string, error) {
	code, err := randomDigits(s.policy.digits())
	if err != nil {
		return "", "", fmt.Errorf("generate otp: %w", err)
	}
	digest, err := s.codec.Digest(code)
	if err != nil {
		return "", "", fmt.Errorf("digest otp: %w", err)
	}
	return code, digest, nil
}

// issueCode persiste el digest del canal antes de que el caller despache el codigo.
func (s *AccountService) issueCode(ctx context.Context, accountID string, ch domain.Channel) (string, error) {
	code, digest, err := s.newCode()
	if err != nil {
		return "", err
	}
	if err := s.accounts.SetCode(ctx, accountID, ch, digest, s.now()); err != nil {
		return "", err
	}
	s.metrics.OTPIssued(ch)
	return code, nil
}

// matchCode compara el codigo enviado con el digest guardado del canal y aplica la politica
// de vigencia. Devuelve el digest para que la consumicion sea condicional al mismo valor.
func (s *AccountService) matchCode(a domain.Account, ch domain.Channel, code string) (string, bool, error) {
	stored, issuedAt := a.CodeState(ch)
	if stored == "" || !isNumericCode(code, s.policy.digits()) {
		return "", false, nil
	}
	digest, err := s.codec.Digest(code)
	if err != nil {
		return "", false, err
	}
	if !secret.Equal(digest, stored) {
		return "", false, nil
	}
	if s.policy.Expired(issuedAt, s.now()) {
		return "", false, nil
	}
	return digest, true, nil
}

// sendCode despacha code por ch. El texto del SMS y la plantilla del email salen de kind.
func (s *AccountService) sendCode(accountID string, kind notify.Kind, ch domain.Channel, to, name, code string) {
	msg := notify.Message{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Channel:   ch,
		To:        to,
		Code:      code,
		CreatedAt: s.now(),
	}
	if ch == domain.ChannelEmail {
		msg.Template = emailTemplates[kind]
		msg.Name = name
	} else {
		msg.Text = fmt.Sprintf(smsTexts[kind], code)
	}
	s.notifier.Dispatch(msg)
}

const (
	smsSignupText = "Your Monay signup verification code is %s"
	smsOTPText    = "Your Monay verification code is %s"
	smsPINText    = "Your Monay PIN reset code is %s"
	smsChangeText = "Your Monay code to confirm this number is %s"
)

var smsTexts = map[notify.Kind]string{
	notify.KindSignup:        smsSignupText,
	notify.KindVerification:  smsOTPText,
	notify.KindPasswordReset: smsOTPText,
	notify.KindPINReset:      smsPINText,
	notify.KindChannelChange: smsChangeText,
}

var emailTemplates = map[notify.Kind]email.Template{
	notify.KindSignup:        email.TemplateSignup,
	notify.KindVerification:  email.TemplateVerification,
	notify.KindPasswordReset: email.TemplateForgotPassword,
	notify.KindChannelChange: email.TemplateChangeEmail,
}

// isOpen indica si la cuenta no esta eliminada, bloqueada ni inactiva.
func isOpen(a domain.Account) bool {
	return a.IsActive && !a.IsBlocked && !a.IsDeleted
}

// closedStatus traduce el gate de ciclo de vida a su Status. Orden: deleted, blocked, inactive.
func closedStatus(a domain.Account) Status {
	switch {
	case a.IsDeleted:
		return StatusDeleted
	case a.IsBlocked:
		return StatusBlocked
	default:
		return StatusInactive
	}
}
