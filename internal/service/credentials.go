package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/email"
	"monay-auth/internal/notify"
	"monay-auth/internal/secret"
)

const (
	resetTokenLength = 32
	pinMinDigits     = 4
	pinMaxDigits     = 6
)

// ChangePassword exige la password actual; notmatched se evalua antes que samepassword.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, current, next string) (Status, error) {
	const op = "account.change_password"
	if next == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return "", err
	}
	if !s.passwords.Compare(a.PasswordHash, current) {
		return s.credentialStatus(op, StatusNotMatched), nil
	}
	if current == next {
		return s.credentialStatus(op, StatusSamePassword), nil
	}
	if err := s.storePassword(ctx, a.ID, next); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusChanged), nil
}

// ResetPassword cambia la password con un OTP del canal del username. El codigo se consume
// y el canal queda verificado.
func (s *AccountService) ResetPassword(ctx context.Context, username, code, next string) (Status, error) {
	const op = "account.reset_password"
	if next == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, ch, digest, ok, err := s.checkOTP(ctx, username, code)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !ok {
		return s.credentialStatus(op, StatusInvalid), nil
	}
	if !isOpen(a) {
		return s.credentialStatus(op, StatusInactive), nil
	}
	if s.passwords.Compare(a.PasswordHash, next) {
		return s.credentialStatus(op, StatusSamePassword), nil
	}
	if err := s.storePassword(ctx, a.ID, next); err != nil {
		return "", apperr.Infra(op, err)
	}
	if _, err := s.accounts.ConsumeCode(ctx, a.ID, ch, digest); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusUpdated), nil
}

// AdminForgotPassword genera un token de reset y lo envia por email al admin.
func (s *AccountService) AdminForgotPassword(ctx context.Context, emailAddr string) (Status, error) {
	const op = "account.admin_forgot_password"
	a, found, err := lookup(s.accounts.GetByEmail(ctx, normalizeEmail(emailAddr)))
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !found {
		return "", apperr.NotFound(op, ErrAccountNotFound)
	}
	if !a.IsPrivileged() || a.Lifecycle() != domain.LifecycleActive {
		return s.credentialStatus(op, StatusInactive), nil
	}
	if err := s.allow(op, a.Email); err != nil {
		return "", err
	}
	token, err := randomToken(resetTokenLength)
	if err != nil {
		return "", apperr.Infra(op, fmt.Errorf("generate reset token: %w", err))
	}
	if err := s.accounts.SetResetToken(ctx, a.ID, token); err != nil {
		return "", apperr.Infra(op, err)
	}
	s.notifier.Dispatch(notify.Message{
		ID:        uuid.NewString(),
		AccountID: a.ID,
		Kind:      notify.KindAdminReset,
		Channel:   domain.ChannelEmail,
		To:        a.Email,
		Template:  email.TemplateAdminReset,
		Name:      a.FullName(),
		ResetURL:  s.resetURL(token),
		CreatedAt: s.now(),
	})
	return s.credentialStatus(op, StatusSent), nil
}

func (s *AccountService) resetURL(token string) string {
	base := s.baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "admin/reset-password?token=" + token
}

// AdminResetPassword aplica el token de reset; el token se invalida al guardar.
func (s *AccountService) AdminResetPassword(ctx context.Context, token, next string) (Status, error) {
	const op = "account.admin_reset_password"
	token = strings.TrimSpace(token)
	if token == "" || next == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, found, err := lookup(s.accounts.GetByResetToken(ctx, token))
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !found {
		return "", apperr.NotFound(op, ErrAccountNotFound)
	}
	if !a.IsPrivileged() || a.Lifecycle() != domain.LifecycleActive {
		return s.credentialStatus(op, StatusInactive), nil
	}
	if s.passwords.Compare(a.PasswordHash, next) {
		return s.credentialStatus(op, StatusSamePassword), nil
	}
	if err := s.storePassword(ctx, a.ID, next); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusUpdated), nil
}

func (s *AccountService) storePassword(ctx context.Context, accountID, plain string) error {
	hash, err := s.passwords.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.accounts.SetPassword(ctx, accountID, hash)
}

func (s *AccountService) credentialStatus(op string, st Status) Status {
	s.metrics.Workflow(op, string(st))
	return st
}

func validPIN(pin string) bool {
	return len(pin) >= pinMinDigits && len(pin) <= pinMaxDigits && isNumericCode(pin, len(pin))
}

// SetPIN guarda el digest del PIN (mismo esquema determinista que los OTP).
func (s *AccountService) SetPIN(ctx context.Context, accountID, pin string) (Status, error) {
	const op = "account.set_pin"
	if !validPIN(pin) {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	if _, err := s.loadAccount(ctx, op, accountID); err != nil {
		return "", err
	}
	if err := s.storePIN(ctx, accountID, pin); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusUpdated), nil
}

// ChangePIN compara por digest: primero el PIN actual, despues que el nuevo sea distinto.
func (s *AccountService) ChangePIN(ctx context.Context, accountID, current, next string) (Status, error) {
	const op = "account.change_pin"
	if !validPIN(next) {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return "", err
	}
	match, err := s.pinMatches(a, current)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !match {
		return s.credentialStatus(op, StatusNotMatched), nil
	}
	same, err := s.pinMatches(a, next)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if same {
		return s.credentialStatus(op, StatusSamePIN), nil
	}
	if err := s.storePIN(ctx, a.ID, next); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusChanged), nil
}

// VerifyPIN indica si el PIN coincide con el guardado.
func (s *AccountService) VerifyPIN(ctx context.Context, accountID, pin string) (bool, error) {
	const op = "account.verify_pin"
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return false, err
	}
	ok, err := s.pinMatches(a, pin)
	if err != nil {
		return false, apperr.Infra(op, err)
	}
	return ok, nil
}

// ResendPINOTP envia por SMS el codigo que autoriza el reset del PIN.
func (s *AccountService) ResendPINOTP(ctx context.Context, accountID string) (Status, error) {
	const op = "account.resend_pin_otp"
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return "", err
	}
	if a.Mobile == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	if err := s.allow(op, a.Mobile); err != nil {
		return "", err
	}
	code, err := s.issueCode(ctx, a.ID, domain.ChannelMobile)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	s.sendCode(a.ID, notify.KindPINReset, domain.ChannelMobile, a.Mobile, a.FullName(), code)
	return s.credentialStatus(op, StatusSent), nil
}

// ResetPIN valida el OTP sin consumirlo, guarda el PIN nuevo y recien entonces borra el
// codigo del canal que coincidio.
func (s *AccountService) ResetPIN(ctx context.Context, accountID, username, code, pin string) (Status, error) {
	const op = "account.reset_pin"
	if !validPIN(pin) {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, ch, _, ok, err := s.checkOTP(ctx, username, code)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !ok || a.ID != accountID {
		return s.credentialStatus(op, StatusInvalid), nil
	}
	if err := s.storePIN(ctx, a.ID, pin); err != nil {
		return "", apperr.Infra(op, err)
	}
	if err := s.accounts.ClearCode(ctx, a.ID, ch); err != nil {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusUpdated), nil
}

func (s *AccountService) storePIN(ctx context.Context, accountID, pin string) error {
	digest, err := s.codec.Digest(pin)
	if err != nil {
		return fmt.Errorf("digest pin: %w", err)
	}
	err = s.accounts.SetPIN(ctx, accountID, digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

func (s *AccountService) pinMatches(a domain.Account, pin string) (bool, error) {
	if a.PINDigest == "" || pin == "" {
		return false, nil
	}
	digest, err := s.codec.Digest(pin)
	if err != nil {
		return false, fmt.Errorf("digest pin: %w", err)
	}
	return secret.Equal(digest, a.PINDigest), nil
}
