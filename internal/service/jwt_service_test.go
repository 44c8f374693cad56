package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"monay-auth/internal/domain"
)

func testAccount() domain.Account {
	return domain.Account{
		ID:               "a1",
		Email:            "user@example.com",
		Mobile:           "+15551230000",
		PasswordHash:     "hash",
		PINDigest:        "pin",
		Role:             domain.RoleBasicConsumer,
		UserType:         domain.UserTypeUser,
		AccountNumber:    "MC10000001",
		IsEmailVerified:  true,
		IsMobileVerified: true,
		IsActive:         true,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestJWTService_GenerateParseAccess(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())

	pair, err := svc.GeneratePair(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected tokens")
	}

	claims, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "a1" || claims.Email != "user@example.com" || claims.Mobile != "+15551230000" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.AccountNumber != "MC10000001" || !claims.EmailVerified || !claims.MobileVerified {
		t.Fatalf("expected normalized account payload, got %+v", claims)
	}
}

func TestJWTService_ConsumeRefreshOnce(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())

	pair, err := svc.GeneratePair(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	claims, err := svc.ConsumeRefresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("consume refresh: %v", err)
	}
	if claims.UserID != "a1" || claims.TokenType != "refresh" {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}

	if _, err := svc.ConsumeRefresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected consumed refresh token to be rejected, got %v", err)
	}
}

func TestJWTService_RevokeRefresh(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())
	pair, err := svc.GeneratePair(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	if err := svc.RevokeRefresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("revoke refresh: %v", err)
	}
	if _, err := svc.ConsumeRefresh(context.Background(), pair.RefreshToken); err == nil {
		t.Fatalf("expected refresh to fail after revoke")
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTServiceWithStore("", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())

	if _, err := svc.GeneratePair(context.Background(), testAccount()); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsAccessTokenInRefreshFlow(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())
	pair, err := svc.GeneratePair(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	if _, err := svc.ConsumeRefresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for access token used as refresh, got %v", err)
	}
	if _, err := svc.ParseAccessToken(pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for refresh token used as access, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())
	now := time.Now().UTC()
	claims := Claims{
		UserID:    "a1",
		Email:     "user@example.com",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "j1",
			Issuer:    "other-issuer",
			Subject:   "a1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.ParseAccessToken(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestJWTService_ExpiredAccess(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, NewMemoryRefreshTokenStore())
	signed, err := svc.sign(testAccount(), time.Now().UTC().Add(-time.Hour), time.Minute, tokenAccess, "j")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(signed); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_RefreshOfAnotherAccountRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshTokenStore()
	svc := NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, store)
	forged, err := svc.sign(testAccount(), time.Now().UTC(), time.Minute, tokenRefresh, "shared-jti")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if err := store.Store(ctx, "shared-jti", "someone-else", time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.ConsumeRefresh(ctx, forged); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTService_ClockDrivesExpiry(t *testing.T) {
	svc := NewJWTServiceWithStore("secret", time.Minute, time.Hour, nil)
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }
	pair, err := svc.GeneratePair(context.Background(), testAccount())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := svc.ParseAccessToken(pair.AccessToken); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}
