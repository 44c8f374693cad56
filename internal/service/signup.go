package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
	"monay-auth/internal/repository"
)

type SignupInput struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
	Role         string `json:"role"`
	UserType     string `json:"userType"`
	AccountType  string `json:"accountType"`
}

type SignupResult struct {
	Status  Status       `json:"status"`
	Account *AccountView `json:"account,omitempty"`
}

const (
	referralCodeDigits   = 6
	referralCodeAttempts = 10
)

var errReferralExhausted = errors.New("no free referral code")

// Signup registra o actualiza por movil. Una fila pending previa (sendOtp o signup sin
// verificar) se reescribe en vez de rechazarse. Los codigos de SMS y email se despachan
// por separado: el fallo de uno no afecta al otro ni a la cuenta.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	const op = "account.signup"
	mobile := normalizeMobile(in.Mobile)
	emailAddr := normalizeEmail(in.Email)
	if mobile == "" || in.Password == "" {
		return SignupResult{}, apperr.Validation(op, ErrInvalidInput)
	}
	if emailAddr != "" && !isEmail(emailAddr) {
		return SignupResult{}, apperr.Validation(op, ErrInvalidInput)
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = domain.RoleBasicConsumer
	}
	if (domain.Account{Role: role}).IsPrivileged() {
		return SignupResult{}, apperr.Validation(op, fmt.Errorf("%w: role %q", ErrInvalidInput, role))
	}
	userType := strings.TrimSpace(in.UserType)
	if userType == "" {
		userType = domain.UserTypeUser
	}
	if err := s.allow(op, mobile); err != nil {
		return SignupResult{}, err
	}

	var (
		existing, byEmail, referrer          domain.Account
		hasExisting, hasByEmail, hasReferrer bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		existing, hasExisting, err = lookup(s.accounts.GetByMobile(gctx, mobile))
		return err
	})
	if emailAddr != "" {
		g.Go(func() (err error) {
			byEmail, hasByEmail, err = lookup(s.accounts.GetByEmail(gctx, emailAddr))
			return err
		})
	}
	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		g.Go(func() (err error) {
			referrer, hasReferrer, err = lookup(s.accounts.GetByReferralCode(gctx, code))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SignupResult{}, apperr.Infra(op, err)
	}

	if hasExisting {
		if !isOpen(existing) {
			return s.signupStatus(op, closedStatus(existing)), nil
		}
		// Solo una registracion pendiente (ningun canal verificado) puede reescribirse.
		if existing.Lifecycle() == domain.LifecycleActive {
			return s.signupStatus(op, StatusExists), nil
		}
	}
	if hasByEmail && (!hasExisting || byEmail.ID != existing.ID) {
		return s.signupStatus(op, StatusEmailExists), nil
	}

	referralCode := existing.ReferralCode
	if referralCode == "" {
		code, err := s.freeReferralCode(ctx)
		if err != nil {
			return SignupResult{}, apperr.Infra(op, err)
		}
		referralCode = code
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return SignupResult{}, apperr.Infra(op, fmt.Errorf("hash password: %w", err))
	}
	mobileCode, mobileDigest, err := s.newCode()
	if err != nil {
		return SignupResult{}, apperr.Infra(op, err)
	}
	emailCode, emailDigest, err := s.newCode()
	if err != nil {
		return SignupResult{}, apperr.Infra(op, err)
	}

	now := s.now()
	record := domain.Account{
		ID:                 uuid.NewString(),
		FirstName:          strings.TrimSpace(in.FirstName),
		LastName:           strings.TrimSpace(in.LastName),
		Email:              emailAddr,
		Mobile:             mobile,
		PasswordHash:       hash,
		Role:               role,
		UserType:           userType,
		AccountType:        strings.TrimSpace(in.AccountType),
		IsActive:           true,
		MobileCodeDigest:   mobileDigest,
		MobileCodeIssuedAt: &now,
		ReferralCode:       referralCode,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if emailAddr != "" {
		record.EmailCodeDigest = emailDigest
		record.EmailCodeIssuedAt = &now
	}
	if hasReferrer {
		record.ReferredBy = referrer.ID
	}

	saved, err := s.accounts.UpsertByMobile(ctx, record)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.signupStatus(op, StatusEmailExists), nil
	}
	if err != nil {
		return SignupResult{}, apperr.Infra(op, err)
	}
	s.metrics.OTPIssued(domain.ChannelMobile)
	if emailAddr != "" {
		s.metrics.OTPIssued(domain.ChannelEmail)
	}

	saved = s.backfill(ctx, saved)
	if hasReferrer || userType == domain.UserTypeSecondary {
		s.linkParent(ctx, saved.ID, referrer.ID)
	}

	s.sendCode(saved.ID, notify.KindSignup, domain.ChannelMobile, saved.Mobile, saved.FullName(), mobileCode)
	s.sendCode(saved.ID, notify.KindSignup, domain.ChannelEmail, saved.Email, saved.FullName(), emailCode)

	view, err := s.view(ctx, saved)
	if err != nil {
		return SignupResult{}, apperr.Infra(op, err)
	}
	s.metrics.Workflow(op, string(StatusSent))
	return SignupResult{Status: StatusSent, Account: &view}, nil
}

func (s *AccountService) signupStatus(op string, st Status) SignupResult {
	s.metrics.Workflow(op, string(st))
	return SignupResult{Status: st}
}

// linkParent crea el vinculo hijo/padre una sola vez por cuenta hija.
func (s *AccountService) linkParent(ctx context.Context, childID, parentID string) {
	links, err := s.referrals.ListByChild(ctx, childID)
	if err != nil {
		s.logger.Warn("list parent links failed", zap.String("account_id", childID), zap.Error(err))
		return
	}
	if len(links) > 0 {
		return
	}
	err = s.referrals.CreateLink(ctx, domain.ChildParent{
		ID:        uuid.NewString(),
		ChildID:   childID,
		ParentID:  parentID,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("create parent link failed", zap.String("account_id", childID), zap.Error(err))
	}
}

func (s *AccountService) freeReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := randomDigits(referralCodeDigits)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		_, err = s.accounts.GetByReferralCode(ctx, code)
		if errors.Is(err, pgx.ErrNoRows) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errReferralExhausted
}

// lookup traduce un miss del repositorio a found=false.
func lookup(a domain.Account, err error) (domain.Account, bool, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	return a, true, nil
}
