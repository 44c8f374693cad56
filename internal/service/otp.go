package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
	"monay-auth/internal/repository"
)

// VerifyResult es la respuesta de verificacion. OK=false significa codigo invalido o vencido.
type VerifyResult struct {
	OK      bool             `json:"ok"`
	IsEmail bool             `json:"isEmail"`
	Status  domain.Lifecycle `json:"status,omitempty"`
}

// PurposeForgotPassword elige la plantilla de recuperacion al reenviar el codigo por email.
const PurposeForgotPassword = "forgot_password"

// VerifyOTP consume el codigo: borra digest y timestamp y marca el canal como verificado.
// Un segundo intento con el mismo codigo falla porque el digest ya no existe.
func (s *AccountService) VerifyOTP(ctx context.Context, identifier, code string) (VerifyResult, error) {
	const op = "account.verify_otp"
	a, ch, digest, ok, err := s.checkOTP(ctx, identifier, code)
	if err != nil {
		return VerifyResult{}, apperr.Infra(op, err)
	}
	if !ok {
		s.metrics.Workflow(op, "invalid")
		return VerifyResult{IsEmail: ch == domain.ChannelEmail}, nil
	}
	consumed, err := s.accounts.ConsumeCode(ctx, a.ID, ch, digest)
	if err != nil {
		return VerifyResult{}, apperr.Infra(op, err)
	}
	if !consumed {
		s.metrics.Workflow(op, "invalid")
		return VerifyResult{IsEmail: ch == domain.ChannelEmail}, nil
	}
	if ch == domain.ChannelEmail {
		a.IsEmailVerified = true
	} else {
		a.IsMobileVerified = true
	}
	s.metrics.Workflow(op, "ok")
	return VerifyResult{OK: true, IsEmail: ch == domain.ChannelEmail, Status: a.Lifecycle()}, nil
}

// VerifyOTPOnly valida el codigo sin mutar el registro; el flujo que sigue hace la consumicion.
func (s *AccountService) VerifyOTPOnly(ctx context.Context, identifier, code string) (VerifyResult, error) {
	const op = "account.verify_otp_only"
	a, ch, _, ok, err := s.checkOTP(ctx, identifier, code)
	if err != nil {
		return VerifyResult{}, apperr.Infra(op, err)
	}
	if !ok {
		s.metrics.Workflow(op, "invalid")
		return VerifyResult{IsEmail: ch == domain.ChannelEmail}, nil
	}
	s.metrics.Workflow(op, "ok")
	return VerifyResult{OK: true, IsEmail: ch == domain.ChannelEmail, Status: a.Lifecycle()}, nil
}

func (s *AccountService) checkOTP(ctx context.Context, identifier, code string) (domain.Account, domain.Channel, string, bool, error) {
	a, ch, found, err := s.findByIdentifier(ctx, identifier)
	if err != nil || !found {
		return domain.Account{}, ch, "", false, err
	}
	digest, ok, err := s.matchCode(a, ch, code)
	if err != nil {
		return domain.Account{}, ch, "", false, err
	}
	return a, ch, digest, ok, nil
}

// SendOTP emite el codigo de movil previo al signup. Un movil desconocido crea la fila
// pending; una fila pending refresca su codigo; cualquier otra cuenta devuelve su estado.
func (s *AccountService) SendOTP(ctx context.Context, mobile string) (Status, error) {
	const op = "account.send_otp"
	mobile = normalizeMobile(mobile)
	if mobile == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	if err := s.allow(op, mobile); err != nil {
		return "", err
	}

	a, err := s.accounts.GetByMobile(ctx, mobile)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return s.createPendingMobile(ctx, op, mobile)
	case err != nil:
		return "", apperr.Infra(op, err)
	}

	if lc := a.Lifecycle(); lc != domain.LifecyclePending {
		s.metrics.Workflow(op, string(lc))
		return Status(lc), nil
	}
	code, err := s.issueCode(ctx, a.ID, domain.ChannelMobile)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	s.sendCode(a.ID, notify.KindVerification, domain.ChannelMobile, mobile, a.FullName(), code)
	s.metrics.Workflow(op, string(StatusSent))
	return StatusSent, nil
}

func (s *AccountService) createPendingMobile(ctx context.Context, op, mobile string) (Status, error) {
	code, digest, err := s.newCode()
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	now := s.now()
	id := uuid.NewString()
	_, err = s.accounts.Create(ctx, domain.Account{
		ID:                 id,
		Mobile:             mobile,
		Role:               domain.RoleBasicConsumer,
		UserType:           domain.UserTypeUser,
		IsActive:           true,
		MobileCodeDigest:   digest,
		MobileCodeIssuedAt: &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return "", apperr.Conflict(op, err)
	}
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	s.metrics.OTPIssued(domain.ChannelMobile)
	s.sendCode(id, notify.KindVerification, domain.ChannelMobile, mobile, "", code)
	s.metrics.Workflow(op, string(StatusSent))
	return StatusSent, nil
}

// ResendVerificationCode reemite el codigo del canal del username. Por email, purpose elige
// entre la plantilla de verificacion y la de recuperacion de password.
func (s *AccountService) ResendVerificationCode(ctx context.Context, username, purpose string) (Status, error) {
	const op = "account.resend_code"
	a, ch, found, err := s.findByIdentifier(ctx, username)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !found {
		return "", apperr.NotFound(op, ErrAccountNotFound)
	}
	if lc := a.Lifecycle(); lc != domain.LifecycleActive && lc != domain.LifecyclePending {
		s.metrics.Workflow(op, string(StatusInactive))
		return StatusInactive, nil
	}
	if err := s.allow(op, a.Identifier(ch)); err != nil {
		return "", err
	}
	code, err := s.issueCode(ctx, a.ID, ch)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	kind := notify.KindVerification
	if purpose == PurposeForgotPassword {
		kind = notify.KindPasswordReset
	}
	s.sendCode(a.ID, kind, ch, a.Identifier(ch), a.FullName(), code)
	s.metrics.Workflow(op, string(StatusUpdated))
	return StatusUpdated, nil
}

// SendEmailVerificationCode envia un codigo al email registrado de la cuenta autenticada.
func (s *AccountService) SendEmailVerificationCode(ctx context.Context, accountID string) (Status, error) {
	const op = "account.send_email_code"
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return "", err
	}
	if a.Email == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	if err := s.allow(op, a.Email); err != nil {
		return "", err
	}
	code, err := s.issueCode(ctx, a.ID, domain.ChannelEmail)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	s.sendCode(a.ID, notify.KindVerification, domain.ChannelEmail, a.Email, a.FullName(), code)
	s.logger.Debug("email verification code issued", zap.String("account_id", a.ID))
	s.metrics.Workflow(op, string(StatusSent))
	return StatusSent, nil
}
