package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
)

func TestLoginUnverifiedEmailSkipsPasswordCompare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putAccount(t, func(a *domain.Account) { a.IsEmailVerified = false })

	for _, password := range []string{"Secret123", "wrong"} {
		res, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: password})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if res.Status != StatusVerifyEmail || res.Tokens != nil {
			t.Fatalf("expected verify_email, got %+v", res)
		}
	}
	if n := f.hasher.count(); n != 0 {
		t.Fatalf("expected no password comparison, got %d", n)
	}
}

func TestLoginUnverifiedMobile(t *testing.T) {
	f := newFixture(t)
	f.putAccount(t, func(a *domain.Account) { a.IsMobileVerified = false })

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "+15551230000", Password: "Secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != StatusVerifyPhone {
		t.Fatalf("expected verify_phone_number, got %s", res.Status)
	}
	if f.hasher.count() != 0 {
		t.Fatalf("expected no password comparison")
	}
}

func TestLoginLifecycleGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.Account)
		want   Status
	}{
		{"blocked", func(a *domain.Account) { a.IsBlocked = true }, StatusBlocked},
		{"deleted wins over blocked", func(a *domain.Account) {
			a.IsDeleted = true
			a.IsBlocked = true
		}, StatusDeleted},
		{"inactive", func(a *domain.Account) { a.IsActive = false }, StatusInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.putAccount(t, tc.mutate)
			for _, password := range []string{"Secret123", "wrong"} {
				res, err := f.svc.Login(context.Background(), LoginInput{Username: "ana@example.com", Password: password})
				if err != nil {
					t.Fatalf("login: %v", err)
				}
				if res.Status != tc.want {
					t.Fatalf("expected %s, got %s", tc.want, res.Status)
				}
			}
			if f.devices.Len() != 0 {
				t.Fatalf("expected no device binding")
			}
		})
	}
}

func TestLoginRejectsWrongPasswordAndPrivileged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putAccount(t, nil)
	f.putAccount(t, func(a *domain.Account) {
		a.Email = "admin@monay.test"
		a.Mobile = "+15550000001"
		a.Role = domain.RolePlatformAdmin
	})

	res, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: "wrong"})
	if err != nil || res.Status != StatusInvalid {
		t.Fatalf("expected invalid for wrong password, got %+v, %v", res, err)
	}
	res, err = f.svc.Login(ctx, LoginInput{Username: "admin@monay.test", Password: "Secret123"})
	if err != nil || res.Status != StatusInvalid {
		t.Fatalf("expected privileged account excluded, got %+v, %v", res, err)
	}
	res, err = f.svc.Login(ctx, LoginInput{Username: "ghost@example.com", Password: "Secret123"})
	if err != nil || res.Status != StatusInvalid {
		t.Fatalf("expected invalid for unknown account, got %+v, %v", res, err)
	}
}

func TestLoginSuccessBindsDeviceAndBackfills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)

	res, err := f.svc.Login(ctx, LoginInput{
		Username:      "ana@example.com",
		Password:      "Secret123",
		FirebaseToken: "fcm-1",
		DeviceType:    "ios",
		Device:        DeviceInfo{DeviceID: "dev-1", DeviceModel: "iPhone", IP: "10.0.0.1"},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Status != StatusSuccess || res.Tokens == nil || res.Account == nil {
		t.Fatalf("unexpected login result: %+v", res)
	}
	wantNumber := fmt.Sprintf("MC1%07d", a.Seq)
	if res.Account.AccountNumber != wantNumber {
		t.Fatalf("expected account number %s, got %s", wantNumber, res.Account.AccountNumber)
	}
	if res.Account.QRCodeURL != "https://cdn.test/qr/1.png" {
		t.Fatalf("expected qr url, got %q", res.Account.QRCodeURL)
	}

	claims, err := f.tokens.ParseAccessToken(res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != a.ID || claims.AccountNumber != wantNumber {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	binding, err := f.devices.GetByAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("binding: %v", err)
	}
	if binding.AccessToken != res.Tokens.AccessToken || binding.FirebaseToken != "fcm-1" || binding.DeviceType != "ios" {
		t.Fatalf("unexpected binding: %+v", binding)
	}
	if !binding.ExpiresAt.Equal(f.now.Add(f.svc.deviceTTL)) {
		t.Fatalf("unexpected binding expiry %v", binding.ExpiresAt)
	}

	again, err := f.svc.Login(ctx, LoginInput{Username: "+15551230000", Password: "Secret123"})
	if err != nil || again.Status != StatusSuccess {
		t.Fatalf("second login: %+v, %v", again, err)
	}
	if f.devices.Len() != 1 {
		t.Fatalf("expected a single binding per account, got %d", f.devices.Len())
	}
	if h := f.devices.History(a.ID); len(h) != 2 || h[0].DeviceID != "dev-1" || h[1].DeviceType != "web" {
		t.Fatalf("unexpected device history: %+v", h)
	}
	stored := f.reload(t, a.ID)
	if stored.AccountNumber != wantNumber || stored.QRCode != "qr/1.png" {
		t.Fatalf("backfill must be idempotent, got %s %s", stored.AccountNumber, stored.QRCode)
	}
	if f.qr.n != 1 {
		t.Fatalf("expected qr generated once, got %d", f.qr.n)
	}
}

func TestLoginMerchantAccountNumberPrefix(t *testing.T) {
	f := newFixture(t)
	a := f.putAccount(t, func(a *domain.Account) { a.UserType = domain.UserTypeMerchant })

	res, err := f.svc.Login(context.Background(), LoginInput{Username: "ana@example.com", Password: "Secret123"})
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("login: %+v, %v", res, err)
	}
	if want := fmt.Sprintf("MM1%07d", a.Seq); res.Account.AccountNumber != want {
		t.Fatalf("expected %s, got %s", want, res.Account.AccountNumber)
	}
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putAccount(t, nil)
	f.putAccount(t, func(a *domain.Account) {
		a.Email = "admin@monay.test"
		a.Mobile = "+15550000001"
		a.Role = domain.RoleSupportAgent
	})

	res, err := f.svc.AdminLogin(ctx, "admin@monay.test", "Secret123")
	if err != nil || res.Status != StatusSuccess || res.Tokens == nil {
		t.Fatalf("expected admin success, got %+v, %v", res, err)
	}
	if res, _ := f.svc.AdminLogin(ctx, "ana@example.com", "Secret123"); res.Status != StatusInvalid {
		t.Fatalf("expected consumer rejected from admin login, got %s", res.Status)
	}
	if res, _ := f.svc.AdminLogin(ctx, "+15550000001", "Secret123"); res.Status != StatusInvalid {
		t.Fatalf("expected mobile identifier rejected, got %s", res.Status)
	}
}

func TestAuthorizeRequiresBoundToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)

	res, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: "Secret123"})
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("login: %+v, %v", res, err)
	}
	claims, err := f.tokens.ParseAccessToken(res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, err := f.svc.Authorize(ctx, claims, res.Tokens.AccessToken); err != nil || got.ID != a.ID {
		t.Fatalf("expected authorized, got %v", err)
	}

	if err := f.svc.Logout(ctx, a.ID, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = f.svc.Authorize(ctx, claims, res.Tokens.AccessToken)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected revoked session after logout, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken); err == nil {
		t.Fatalf("expected refresh token revoked on logout")
	}
}

func TestAuthorizeRejectsBlockedAndExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)
	res, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: "Secret123"})
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("login: %+v, %v", res, err)
	}
	claims, _ := f.tokens.ParseAccessToken(res.Tokens.AccessToken)

	f.now = f.now.Add(f.svc.deviceTTL + 1)
	if _, err := f.svc.Authorize(ctx, claims, res.Tokens.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected expired binding rejected, got %v", err)
	}

	f.now = f.now.Add(-f.svc.deviceTTL)
	blocked := f.reload(t, a.ID)
	blocked.IsBlocked = true
	f.accounts.Put(blocked)
	if _, err := f.svc.Authorize(ctx, claims, res.Tokens.AccessToken); apperr.KindOf(err) != apperr.KindValidationFailed {
		t.Fatalf("expected blocked account rejected, got %v", err)
	}
}

func TestRefreshRotatesBindingToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)
	res, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: "Secret123"})
	if err != nil || res.Status != StatusSuccess {
		t.Fatalf("login: %+v, %v", res, err)
	}
	oldClaims, _ := f.tokens.ParseAccessToken(res.Tokens.AccessToken)

	refreshed, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken)
	if err != nil || refreshed.Status != StatusSuccess {
		t.Fatalf("refresh: %+v, %v", refreshed, err)
	}
	binding, _ := f.devices.GetByAccount(ctx, a.ID)
	if binding.AccessToken != refreshed.Tokens.AccessToken {
		t.Fatalf("expected binding to hold the rotated access token")
	}
	if _, err := f.svc.Authorize(ctx, oldClaims, res.Tokens.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected previous access token to stop authorizing, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected refresh token to be single use, got %v", err)
	}
}

func TestUpdateFirebaseToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)

	if _, err := f.svc.UpdateFirebaseToken(ctx, a.ID, "fcm-2"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found without binding, got %v", err)
	}
	if _, err := f.svc.Login(ctx, LoginInput{Username: "ana@example.com", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if st, err := f.svc.UpdateFirebaseToken(ctx, a.ID, "fcm-2"); err != nil || st != StatusUpdated {
		t.Fatalf("expected updated, got %s, %v", st, err)
	}
	binding, _ := f.devices.GetByAccount(ctx, a.ID)
	if binding.FirebaseToken != "fcm-2" {
		t.Fatalf("expected firebase token stored, got %q", binding.FirebaseToken)
	}
}
