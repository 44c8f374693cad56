package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
	"monay-auth/internal/repository"
	"monay-auth/internal/secret"
)

// RequestChannelChange registra (o refresca) la fila pending para el valor nuevo y le envia
// un codigo. Si otro titular ya usa el valor devuelve exists.
func (s *AccountService) RequestChannelChange(ctx context.Context, accountID string, ch domain.Channel, value string) (Status, error) {
	op := "account.request_" + string(ch) + "_change"
	value, ok := normalizeChannelValue(ch, value)
	if !ok {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return "", err
	}
	owner, taken, err := s.ownerOf(ctx, ch, value)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if taken && owner.ID != a.ID {
		return s.credentialStatus(op, StatusExists), nil
	}
	if err := s.allow(op, value); err != nil {
		return "", err
	}

	code, digest, err := s.newCode()
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	now := s.now()
	if _, err := s.changes.UpsertPending(ctx, domain.ChannelChange{
		ID:           uuid.NewString(),
		AccountID:    a.ID,
		Channel:      ch,
		NewValue:     value,
		CodeDigest:   digest,
		CodeIssuedAt: &now,
		Status:       domain.ChangePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return "", apperr.Infra(op, err)
	}
	s.metrics.OTPIssued(ch)

	s.sendCode(a.ID, notify.KindChannelChange, ch, value, a.FullName(), code)
	return s.credentialStatus(op, StatusSent), nil
}

// VerifyChannelChange aplica el valor nuevo: la fila activa anterior pasa a old, la pending a
// active y la cuenta queda con el canal verificado.
func (s *AccountService) VerifyChannelChange(ctx context.Context, accountID string, ch domain.Channel, value, code string) (Status, error) {
	op := "account.verify_" + string(ch) + "_change"
	value, ok := normalizeChannelValue(ch, value)
	if !ok {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	change, err := s.changes.GetPending(ctx, accountID, ch, value)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.credentialStatus(op, StatusInvalid), nil
	}
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !isNumericCode(code, s.policy.digits()) {
		return s.credentialStatus(op, StatusInvalid), nil
	}
	digest, err := s.codec.Digest(code)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if !secret.Equal(digest, change.CodeDigest) || s.policy.Expired(change.CodeIssuedAt, s.now()) {
		return s.credentialStatus(op, StatusInvalid), nil
	}

	err = s.accounts.SetChannelValue(ctx, accountID, ch, value)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.credentialStatus(op, StatusExists), nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound(op, ErrAccountNotFound)
	}
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	if err := s.changes.Activate(ctx, change); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Infra(op, err)
	}
	return s.credentialStatus(op, StatusUpdated), nil
}

// ChannelHistory lista las solicitudes de cambio de la cuenta (pending, active y old).
func (s *AccountService) ChannelHistory(ctx context.Context, accountID string) ([]domain.ChannelChange, error) {
	const op = "account.channel_history"
	changes, err := s.changes.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Infra(op, err)
	}
	return changes, nil
}

func (s *AccountService) ownerOf(ctx context.Context, ch domain.Channel, value string) (domain.Account, bool, error) {
	if ch == domain.ChannelEmail {
		return lookup(s.accounts.GetByEmail(ctx, value))
	}
	return lookup(s.accounts.GetByMobile(ctx, value))
}

func normalizeChannelValue(ch domain.Channel, value string) (string, bool) {
	switch ch {
	case domain.ChannelEmail:
		value = normalizeEmail(value)
		return value, isEmail(value)
	case domain.ChannelMobile:
		value = normalizeMobile(value)
		return value, len(value) > 2
	default:
		return "", false
	}
}
