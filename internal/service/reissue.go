package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
)

// Reissue vuelve a emitir la notificacion de un dead-letter con un codigo nuevo, que reemplaza
// al anterior. Solo se reemite si la cuenta sigue abierta y el destino sigue siendo el del
// canal (o el de su cambio pendiente). El reset de admin no se reemite: el link lleva un token
// que el dead-letter no conserva.
func (s *AccountService) Reissue(ctx context.Context, msg notify.Message) error {
	const op = "account.reissue"
	if msg.AccountID == "" || msg.Kind == "" || msg.Kind == notify.KindAdminReset {
		return apperr.Validation(op, ErrNotReissuable)
	}
	if msg.Channel != domain.ChannelMobile && msg.Channel != domain.ChannelEmail {
		return apperr.Validation(op, ErrNotReissuable)
	}
	a, err := s.loadAccount(ctx, op, msg.AccountID)
	if err != nil {
		return err
	}
	if !isOpen(a) {
		return apperr.Validation(op, ErrNotReissuable)
	}

	var code string
	if msg.Kind == notify.KindChannelChange {
		code, err = s.reissueChange(ctx, op, a, msg.Channel, msg.To)
	} else {
		code, err = s.reissueCode(ctx, op, a, msg)
	}
	if err != nil {
		return err
	}
	s.metrics.OTPIssued(msg.Channel)
	s.sendCode(a.ID, msg.Kind, msg.Channel, msg.To, a.FullName(), code)
	s.logger.Info("notification reissued",
		zap.String("account_id", a.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("channel", string(msg.Channel)),
	)
	return nil
}

func (s *AccountService) reissueCode(ctx context.Context, op string, a domain.Account, msg notify.Message) (string, error) {
	if msg.To == "" || a.Identifier(msg.Channel) != msg.To {
		return "", apperr.Validation(op, ErrNotReissuable)
	}
	// Un canal ya verificado no necesita el codigo de verificacion.
	if msg.Kind == notify.KindSignup || msg.Kind == notify.KindVerification {
		verified := a.IsMobileVerified
		if msg.Channel == domain.ChannelEmail {
			verified = a.IsEmailVerified
		}
		if verified {
			return "", apperr.Validation(op, ErrNotReissuable)
		}
	}
	code, err := s.issueCode(ctx, a.ID, msg.Channel)
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	return code, nil
}

func (s *AccountService) reissueChange(ctx context.Context, op string, a domain.Account, ch domain.Channel, value string) (string, error) {
	change, err := s.changes.GetPending(ctx, a.ID, ch, value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Validation(op, ErrNotReissuable)
	}
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	code, digest, err := s.newCode()
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	now := s.now()
	change.CodeDigest = digest
	change.CodeIssuedAt = &now
	change.UpdatedAt = now
	if _, err := s.changes.UpsertPending(ctx, change); err != nil {
		return "", apperr.Infra(op, err)
	}
	return code, nil
}
