package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
)

// AccountView es la cuenta saneada que sale del servicio: sin hashes, codigos ni tokens.
type AccountView struct {
	ID               string               `json:"id"`
	FirstName        string               `json:"first_name,omitempty"`
	LastName         string               `json:"last_name,omitempty"`
	Email            string               `json:"email,omitempty"`
	Mobile           string               `json:"mobile,omitempty"`
	Role             string               `json:"role"`
	UserType         string               `json:"user_type"`
	AccountType      string               `json:"account_type,omitempty"`
	AccountNumber    string               `json:"account_number,omitempty"`
	ReferralCode     string               `json:"referral_code,omitempty"`
	QRCodeURL        string               `json:"qr_code_url,omitempty"`
	IsEmailVerified  bool                 `json:"is_email_verified"`
	IsMobileVerified bool                 `json:"is_mobile_verified"`
	IsPINSet         bool                 `json:"is_pin_set"`
	Status           domain.Lifecycle     `json:"status"`
	Parents          []domain.ChildParent `json:"parents,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func (s *AccountService) view(ctx context.Context, a domain.Account) (AccountView, error) {
	v := AccountView{
		ID:               a.ID,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Email:            a.Email,
		Mobile:           a.Mobile,
		Role:             a.Role,
		UserType:         a.UserType,
		AccountType:      a.AccountType,
		AccountNumber:    a.AccountNumber,
		ReferralCode:     a.ReferralCode,
		IsEmailVerified:  a.IsEmailVerified,
		IsMobileVerified: a.IsMobileVerified,
		IsPINSet:         a.PINDigest != "",
		Status:           a.Lifecycle(),
		CreatedAt:        a.CreatedAt,
	}
	if a.QRCode != "" && s.qr != nil {
		url, err := s.qr.URL(ctx, a.QRCode)
		if err != nil {
			s.logger.Warn("qr url failed", zap.String("account_id", a.ID), zap.Error(err))
		} else {
			v.QRCodeURL = url
		}
	}
	parents, err := s.referrals.ListByChild(ctx, a.ID)
	if err != nil {
		return AccountView{}, fmt.Errorf("list parents: %w", err)
	}
	v.Parents = parents
	return v, nil
}

// Profile devuelve la cuenta autenticada saneada.
func (s *AccountService) Profile(ctx context.Context, accountID string) (AccountView, error) {
	const op = "account.profile"
	a, err := s.loadAccount(ctx, op, accountID)
	if err != nil {
		return AccountView{}, err
	}
	v, err := s.view(ctx, a)
	if err != nil {
		return AccountView{}, apperr.Infra(op, err)
	}
	return v, nil
}
