package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"monay-auth/internal/domain"
)

func TestMemoryAccountUpsertByMobileKeepsRow(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := repo.UpsertByMobile(ctx, domain.Account{ID: "a1", Mobile: "+15550001", Email: "a@x.com", ReferralCode: "111111", UpdatedAt: now})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := repo.UpsertByMobile(ctx, domain.Account{ID: "a2", Mobile: "+15550001", Email: "b@x.com", ReferralCode: "222222", UpdatedAt: now})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got %s and %s", first.ID, second.ID)
	}
	if second.ReferralCode != "111111" {
		t.Fatalf("referral code should be preserved, got %s", second.ReferralCode)
	}
	if second.Email != "b@x.com" {
		t.Fatalf("email not merged: %s", second.Email)
	}
	if repo.Count() != 1 {
		t.Fatalf("expected 1 row, got %d", repo.Count())
	}
}

func TestAccountUpsertKeepsReferrer(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	if _, err := repo.UpsertByMobile(ctx, domain.Account{ID: "a1", Mobile: "+15550001", ReferredBy: "ref-1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again, err := repo.UpsertByMobile(ctx, domain.Account{ID: "a2", Mobile: "+15550001"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.ReferredBy != "ref-1" {
		t.Fatalf("expected referrer kept, got %q", again.ReferredBy)
	}
	again, _ = repo.UpsertByMobile(ctx, domain.Account{ID: "a3", Mobile: "+15550001", ReferredBy: "ref-2"})
	if again.ReferredBy != "ref-2" {
		t.Fatalf("expected new referrer applied, got %q", again.ReferredBy)
	}

	if !strings.Contains(upsertByMobileQuery, "referred_by = COALESCE(NULLIF(EXCLUDED.referred_by, ''), accounts.referred_by)") {
		t.Fatalf("pg upsert must not clear referred_by on a signup without referral")
	}
}

func TestMemoryAccountUniqueEmail(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Account{ID: "a1", Email: "Dup@x.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.Create(ctx, domain.Account{ID: "a2", Email: "dup@x.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryAccountConsumeCodeOnce(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()
	if _, err := repo.Create(ctx, domain.Account{ID: "a1", Mobile: "+1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetCode(ctx, "a1", domain.ChannelMobile, "digest", time.Now()); err != nil {
		t.Fatalf("set code: %v", err)
	}

	ok, err := repo.ConsumeCode(ctx, "a1", domain.ChannelMobile, "digest")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ConsumeCode(ctx, "a1", domain.ChannelMobile, "digest")
	if err != nil || ok {
		t.Fatalf("second consume should fail: ok=%v err=%v", ok, err)
	}

	a, _ := repo.GetByID(ctx, "a1")
	if !a.IsMobileVerified || a.MobileCodeDigest != "" || a.MobileCodeIssuedAt != nil {
		t.Fatalf("unexpected state after consume: %+v", a)
	}
}

func TestMemoryAccountMissReturnsErrNoRows(t *testing.T) {
	repo := NewMemoryAccountRepository()
	if _, err := repo.GetByEmail(context.Background(), "none@x.com"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := repo.SetPIN(context.Background(), "missing", "x"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestMemoryAccountBackfillOnlyWhenEmpty(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()
	_, _ = repo.Create(ctx, domain.Account{ID: "a1"})

	_ = repo.SetAccountNumber(ctx, "a1", "MC10000001")
	_ = repo.SetAccountNumber(ctx, "a1", "MC19999999")
	_ = repo.SetQRCode(ctx, "a1", "qr/one.png")
	_ = repo.SetQRCode(ctx, "a1", "qr/two.png")

	a, _ := repo.GetByID(ctx, "a1")
	if a.AccountNumber != "MC10000001" || a.QRCode != "qr/one.png" {
		t.Fatalf("backfill overwrote values: %+v", a)
	}
}

func TestMemoryDeviceUpsertSingleBinding(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	b1, _ := repo.Upsert(ctx, domain.DeviceBinding{ID: "d1", AccountID: "a1", AccessToken: "t1", UpdatedAt: now})
	b2, _ := repo.Upsert(ctx, domain.DeviceBinding{ID: "d2", AccountID: "a1", AccessToken: "t2", UpdatedAt: now})
	if b1.ID != b2.ID {
		t.Fatalf("expected binding id kept, got %s vs %s", b1.ID, b2.ID)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected one binding, got %d", repo.Len())
	}

	if err := repo.ClearTokens(ctx, "a1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := repo.GetByAccount(ctx, "a1")
	if got.AccessToken != "" || got.FirebaseToken != "" {
		t.Fatalf("tokens not cleared: %+v", got)
	}
}

func TestMemoryChannelChangeActivate(t *testing.T) {
	repo := NewMemoryChannelChangeRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	first, _ := repo.UpsertPending(ctx, domain.ChannelChange{ID: "c1", AccountID: "a1", Channel: domain.ChannelEmail, NewValue: "n1@x.com", CodeDigest: "d1", UpdatedAt: now})
	if err := repo.Activate(ctx, first); err != nil {
		t.Fatalf("activate first: %v", err)
	}

	pending, _ := repo.UpsertPending(ctx, domain.ChannelChange{ID: "c2", AccountID: "a1", Channel: domain.ChannelEmail, NewValue: "n2@x.com", CodeDigest: "d2", UpdatedAt: now.Add(time.Second)})
	refreshed, _ := repo.UpsertPending(ctx, domain.ChannelChange{ID: "c3", AccountID: "a1", Channel: domain.ChannelEmail, NewValue: "n2@x.com", CodeDigest: "d3", UpdatedAt: now.Add(2 * time.Second)})
	if refreshed.ID != pending.ID || refreshed.CodeDigest != "d3" {
		t.Fatalf("expected pending row refreshed, got %+v", refreshed)
	}
	if err := repo.Activate(ctx, refreshed); err != nil {
		t.Fatalf("activate second: %v", err)
	}

	rows, _ := repo.ListByAccount(ctx, "a1")
	statuses := map[string]domain.ChangeStatus{}
	for _, r := range rows {
		statuses[r.ID] = r.Status
	}
	if statuses["c1"] != domain.ChangeOld || statuses["c2"] != domain.ChangeActive {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}
