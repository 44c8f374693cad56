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
	"monay-auth/internal/secret"
)

// DeviceInfo es la metadata del dispositivo registrada en el historial.
type DeviceInfo struct {
	DeviceID    string `json:"device_id"`
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
	AppVersion  string `json:"app_version"`
	Timezone    string `json:"timezone"`
	IP          string `json:"-"`
}

type LoginInput struct {
	Username      string
	Password      string
	FirebaseToken string
	DeviceType    string
	Device        DeviceInfo
}

// LoginResult lleva Tokens y Account solo cuando Status es success.
type LoginResult struct {
	Status  Status       `json:"status"`
	Tokens  *TokenPair   `json:"tokens,omitempty"`
	Account *AccountView `json:"account,omitempty"`
}

const defaultDeviceType = "web"

// Login aplica los gates en orden: verificacion del canal usado (sin comparar password),
// ciclo de vida y finalmente bcrypt.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	const op = "account.login"
	a, ch, found, err := s.findByIdentifier(ctx, in.Username)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	if !found || a.IsPrivileged() {
		return s.loginStatus(op, StatusInvalid), nil
	}
	if ch == domain.ChannelEmail && !a.IsEmailVerified {
		return s.loginStatus(op, StatusVerifyEmail), nil
	}
	if ch == domain.ChannelMobile && !a.IsMobileVerified {
		return s.loginStatus(op, StatusVerifyPhone), nil
	}
	if !isOpen(a) {
		return s.loginStatus(op, closedStatus(a)), nil
	}
	if !s.passwords.Compare(a.PasswordHash, in.Password) {
		return s.loginStatus(op, StatusInvalid), nil
	}
	return s.openSession(ctx, op, a, in)
}

// AdminLogin es el login del staff: solo roles privilegiados y solo por email.
func (s *AccountService) AdminLogin(ctx context.Context, username, password string) (LoginResult, error) {
	const op = "account.admin_login"
	if !isEmail(username) {
		return s.loginStatus(op, StatusInvalid), nil
	}
	a, _, found, err := s.findByIdentifier(ctx, username)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	if !found || !a.IsPrivileged() {
		return s.loginStatus(op, StatusInvalid), nil
	}
	if !isOpen(a) {
		return s.loginStatus(op, StatusInactive), nil
	}
	if !s.passwords.Compare(a.PasswordHash, password) {
		return s.loginStatus(op, StatusInvalid), nil
	}
	return s.openSession(ctx, op, a, LoginInput{Username: username, DeviceType: defaultDeviceType})
}

func (s *AccountService) loginStatus(op string, st Status) LoginResult {
	s.metrics.Workflow(op, string(st))
	return LoginResult{Status: st}
}

// openSession completa los campos derivados, emite tokens y guarda el binding y el historial.
func (s *AccountService) openSession(ctx context.Context, op string, a domain.Account, in LoginInput) (LoginResult, error) {
	a = s.backfill(ctx, a)

	pair, err := s.tokens.GeneratePair(ctx, a)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, fmt.Errorf("generate tokens: %w", err))
	}

	deviceType := strings.TrimSpace(in.DeviceType)
	if deviceType == "" {
		deviceType = defaultDeviceType
	}
	now := s.now()
	if _, err := s.devices.Upsert(ctx, domain.DeviceBinding{
		ID:            uuid.NewString(),
		AccountID:     a.ID,
		AccessToken:   pair.AccessToken,
		FirebaseToken: in.FirebaseToken,
		DeviceType:    deviceType,
		ExpiresAt:     now.Add(s.deviceTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return LoginResult{}, apperr.Infra(op, fmt.Errorf("bind device: %w", err))
	}
	if err := s.devices.AddHistory(ctx, domain.DeviceHistory{
		ID:          uuid.NewString(),
		AccountID:   a.ID,
		DeviceType:  deviceType,
		DeviceID:    in.Device.DeviceID,
		DeviceModel: in.Device.DeviceModel,
		OSVersion:   in.Device.OSVersion,
		AppVersion:  in.Device.AppVersion,
		Timezone:    in.Device.Timezone,
		IP:          in.Device.IP,
		CreatedAt:   now,
	}); err != nil {
		s.logger.Warn("device history insert failed", zap.String("account_id", a.ID), zap.Error(err))
	}

	view, err := s.view(ctx, a)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	s.metrics.Workflow(op, string(StatusSuccess))
	return LoginResult{Status: StatusSuccess, Tokens: &pair, Account: &view}, nil
}

// backfill asigna numero de cuenta y QR si faltan. Es idempotente: el repositorio solo
// escribe cuando el campo sigue vacio. Un fallo se loguea y la cuenta sigue como estaba.
func (s *AccountService) backfill(ctx context.Context, a domain.Account) domain.Account {
	needNumber := a.AccountNumber == ""
	needQR := a.QRCode == "" && s.qr != nil
	if !needNumber && !needQR {
		return a
	}

	g, gctx := errgroup.WithContext(ctx)
	if needNumber {
		number := accountNumberFor(a.UserType, a.Seq)
		g.Go(func() error {
			if err := s.accounts.SetAccountNumber(gctx, a.ID, number); err != nil {
				return fmt.Errorf("set account number: %w", err)
			}
			return nil
		})
	}
	if needQR {
		g.Go(func() error {
			ref, err := s.qr.Generate(gctx)
			if err != nil {
				return fmt.Errorf("generate qr: %w", err)
			}
			if err := s.accounts.SetQRCode(gctx, a.ID, ref); err != nil {
				return fmt.Errorf("set qr code: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("account backfill failed", zap.String("account_id", a.ID), zap.Error(err))
	}

	fresh, err := s.accounts.GetByID(ctx, a.ID)
	if err != nil {
		s.logger.Warn("account reload after backfill failed", zap.String("account_id", a.ID), zap.Error(err))
		return a
	}
	return fresh
}

// Logout borra access y firebase token del binding; el access token deja de autorizar.
func (s *AccountService) Logout(ctx context.Context, accountID, refreshToken string) error {
	const op = "account.logout"
	if err := s.devices.ClearTokens(ctx, accountID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperr.Infra(op, err)
	}
	if refreshToken != "" {
		if err := s.tokens.RevokeRefresh(ctx, refreshToken); err != nil {
			s.logger.Debug("refresh revoke on logout failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	s.metrics.Workflow(op, string(StatusSuccess))
	return nil
}

// Refresh rota el par de tokens y el access token guardado en el binding.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	const op = "account.refresh"
	claims, err := s.tokens.ConsumeRefresh(ctx, refreshToken)
	if errors.Is(err, ErrJWTInvalid) || errors.Is(err, ErrJWTExpired) {
		return LoginResult{}, apperr.Validation(op, err)
	}
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	a, err := s.loadAccount(ctx, op, claims.UserID)
	if err != nil {
		return LoginResult{}, err
	}
	if !isOpen(a) {
		return s.loginStatus(op, closedStatus(a)), nil
	}
	pair, err := s.tokens.GeneratePair(ctx, a)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, fmt.Errorf("generate tokens: %w", err))
	}
	err = s.devices.UpdateAccessToken(ctx, a.ID, pair.AccessToken, s.now().Add(s.deviceTTL))
	if errors.Is(err, pgx.ErrNoRows) {
		return LoginResult{}, apperr.Validation(op, ErrSessionRevoked)
	}
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	view, err := s.view(ctx, a)
	if err != nil {
		return LoginResult{}, apperr.Infra(op, err)
	}
	s.metrics.Workflow(op, string(StatusSuccess))
	return LoginResult{Status: StatusSuccess, Tokens: &pair, Account: &view}, nil
}

// Authorize confirma que el access token presentado es el del binding vigente y que la
// cuenta no fue bloqueada ni eliminada despues del login.
func (s *AccountService) Authorize(ctx context.Context, claims Claims, accessToken string) (domain.Account, error) {
	const op = "account.authorize"
	binding, err := s.devices.GetByAccount(ctx, claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, apperr.Validation(op, ErrSessionRevoked)
	}
	if err != nil {
		return domain.Account{}, apperr.Infra(op, err)
	}
	if !secret.Equal(binding.AccessToken, accessToken) || !binding.ExpiresAt.After(s.now()) {
		return domain.Account{}, apperr.Validation(op, ErrSessionRevoked)
	}
	a, err := s.loadAccount(ctx, op, claims.UserID)
	if err != nil {
		return domain.Account{}, err
	}
	if a.IsBlocked || a.IsDeleted {
		return domain.Account{}, apperr.Validation(op, ErrSessionRevoked)
	}
	return a, nil
}

func (s *AccountService) UpdateFirebaseToken(ctx context.Context, accountID, token string) (Status, error) {
	const op = "account.update_firebase_token"
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Validation(op, ErrInvalidInput)
	}
	err := s.devices.UpdateFirebaseToken(ctx, accountID, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound(op, ErrSessionRevoked)
	}
	if err != nil {
		return "", apperr.Infra(op, err)
	}
	return StatusUpdated, nil
}
