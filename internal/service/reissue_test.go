package service

import (
	"context"
	"strings"
	"testing"

	"monay-auth/internal/apperr"
	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
)

func TestReissuePendingMobileCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if st, err := f.svc.SendOTP(ctx, "+15559990000"); err != nil || st != StatusSent {
		t.Fatalf("send otp: %s, %v", st, err)
	}
	first := f.notifier.last(t, domain.ChannelMobile)
	if first.AccountID == "" || first.Kind != notify.KindVerification {
		t.Fatalf("message without routing fields: %+v", first)
	}

	if err := f.svc.Reissue(ctx, first.Redacted()); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	again := f.notifier.last(t, domain.ChannelMobile)
	if again.Code == "" || !strings.Contains(again.Text, again.Code) || again.To != "+15559990000" {
		t.Fatalf("unexpected reissued sms: %+v", again)
	}
	stored, _ := f.reload(t, first.AccountID).CodeState(domain.ChannelMobile)
	digest, _ := f.codec.Digest(again.Code)
	if stored != digest {
		t.Fatalf("reissued code not stored")
	}
}

func TestReissuePasswordResetCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)

	if st, err := f.svc.ResendVerificationCode(ctx, a.Email, PurposeForgotPassword); err != nil || st != StatusUpdated {
		t.Fatalf("resend: %s, %v", st, err)
	}
	if err := f.svc.Reissue(ctx, f.notifier.last(t, domain.ChannelEmail).Redacted()); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	msg := f.notifier.last(t, domain.ChannelEmail)
	if msg.Template != "forgot_password" || msg.Kind != notify.KindPasswordReset {
		t.Fatalf("unexpected reissued mail: %+v", msg)
	}
	if st, err := f.svc.ResetPassword(ctx, a.Email, msg.Code, "Fresh123"); err != nil || st != StatusUpdated {
		t.Fatalf("reset with reissued code: %s, %v", st, err)
	}
}

func TestReissueChannelChangeCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)

	if st, err := f.svc.RequestChannelChange(ctx, a.ID, domain.ChannelEmail, "new@example.com"); err != nil || st != StatusSent {
		t.Fatalf("request change: %s, %v", st, err)
	}
	if err := f.svc.Reissue(ctx, f.notifier.last(t, domain.ChannelEmail).Redacted()); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	msg := f.notifier.last(t, domain.ChannelEmail)
	if msg.To != "new@example.com" || msg.Template != "change_email" {
		t.Fatalf("unexpected reissued mail: %+v", msg)
	}
	if st, err := f.svc.VerifyChannelChange(ctx, a.ID, domain.ChannelEmail, "new@example.com", msg.Code); err != nil || st != StatusUpdated {
		t.Fatalf("verify with reissued code: %s, %v", st, err)
	}
}

func TestReissueSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.putAccount(t, nil)
	blocked := f.putAccount(t, func(o *domain.Account) {
		o.Mobile = "+15554440000"
		o.Email = "bo@example.com"
		o.IsBlocked = true
	})

	cases := []struct {
		name string
		msg  notify.Message
	}{
		{"no account", notify.Message{Kind: notify.KindVerification, Channel: domain.ChannelMobile, To: a.Mobile}},
		{"admin reset", notify.Message{AccountID: a.ID, Kind: notify.KindAdminReset, Channel: domain.ChannelEmail, To: a.Email}},
		{"verified channel", notify.Message{AccountID: a.ID, Kind: notify.KindVerification, Channel: domain.ChannelMobile, To: a.Mobile}},
		{"destination changed", notify.Message{AccountID: a.ID, Kind: notify.KindPINReset, Channel: domain.ChannelMobile, To: "+15550000000"}},
		{"no pending change", notify.Message{AccountID: a.ID, Kind: notify.KindChannelChange, Channel: domain.ChannelEmail, To: "nobody@example.com"}},
		{"blocked account", notify.Message{AccountID: blocked.ID, Kind: notify.KindPINReset, Channel: domain.ChannelMobile, To: blocked.Mobile}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.svc.Reissue(ctx, tc.msg); apperr.KindOf(err) != apperr.KindValidationFailed {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if n := len(f.notifier.byChannel(domain.ChannelMobile)) + len(f.notifier.byChannel(domain.ChannelEmail)); n != 0 {
		t.Fatalf("expected no dispatch, got %d", n)
	}
}
