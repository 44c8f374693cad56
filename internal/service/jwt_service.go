package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"monay-auth/internal/domain"
)

const (
	tokenIssuer  = "monay-auth"
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// JWTService emite el par access/refresh de una cuenta y valida los tokens presentados.
// Los refresh tokens son de un solo uso: su jti vive en el RefreshTokenStore.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
	now        func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims es el payload normalizado de la cuenta: nunca lleva hashes, codigos ni tokens.
type Claims struct {
	UserID         string `json:"uid"`
	Email          string `json:"email,omitempty"`
	Mobile         string `json:"mobile,omitempty"`
	Role           string `json:"role"`
	UserType       string `json:"user_type"`
	AccountNumber  string `json:"account_number,omitempty"`
	EmailVerified  bool   `json:"email_verified"`
	MobileVerified bool   `json:"mobile_verified"`
	TokenType      string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTServiceWithStore(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	if store == nil {
		store = NewMemoryRefreshTokenStore()
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GeneratePair firma un access y un refresh token con el estado actual de la cuenta.
func (s *JWTService) GeneratePair(ctx context.Context, account domain.Account) (TokenPair, error) {
	if len(s.secret) == 0 {
		return TokenPair{}, ErrJWTInvalid
	}
	now := s.now()
	access, err := s.sign(account, now, s.accessTTL, tokenAccess, uuid.NewString())
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access: %w", err)
	}
	jti := uuid.NewString()
	refresh, err := s.sign(account, now, s.refreshTTL, tokenRefresh, jti)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh: %w", err)
	}
	if err := s.store.Store(ctx, jti, account.ID, s.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// ConsumeRefresh valida el refresh token y quema su jti; el caller emite el par nuevo a
// partir del estado actual de la cuenta. Errores de token: ErrJWTInvalid / ErrJWTExpired.
func (s *JWTService) ConsumeRefresh(ctx context.Context, refreshToken string) (Claims, error) {
	claims, err := s.verify(refreshToken, tokenRefresh)
	if err != nil {
		return Claims{}, err
	}
	ok, err := s.store.Consume(ctx, claims.ID, claims.UserID)
	if err != nil {
		return Claims{}, fmt.Errorf("consume refresh: %w", err)
	}
	if !ok {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) RevokeRefresh(ctx context.Context, refreshToken string) error {
	claims, err := s.verify(refreshToken, tokenRefresh)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, claims.ID)
}

func (s *JWTService) ParseAccessToken(accessToken string) (Claims, error) {
	return s.verify(accessToken, tokenAccess)
}

// verify parsea la firma y exige tipo, issuer, subject == uid y jti.
func (s *JWTService) verify(raw, tokenType string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(raw) == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, ErrJWTExpired
	}
	if err != nil {
		return Claims{}, ErrJWTInvalid
	}
	if claims.TokenType != tokenType || claims.ID == "" {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) sign(a domain.Account, now time.Time, ttl time.Duration, tokenType, jti string) (string, error) {
	claims := Claims{
		UserID:         a.ID,
		Email:          a.Email,
		Mobile:         a.Mobile,
		Role:           a.Role,
		UserType:       a.UserType,
		AccountNumber:  a.AccountNumber,
		EmailVerified:  a.IsEmailVerified,
		MobileVerified: a.IsMobileVerified,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    tokenIssuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
