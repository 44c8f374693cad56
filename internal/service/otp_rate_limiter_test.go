package service

import (
	"testing"
	"time"
)

func TestOTPRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewOTPRateLimiter(time.Minute, 2).(*otpRateLimiter)
	l.now = func() time.Time { return now }

	if !l.Allow("User@Example.com") || !l.Allow("user@example.com ") {
		t.Fatalf("expected first two attempts to be allowed")
	}
	if l.Allow("user@example.com") {
		t.Fatalf("expected third attempt inside the window to be denied")
	}
	if !l.Allow("other@example.com") {
		t.Fatalf("expected keys to be limited independently")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow("user@example.com") {
		t.Fatalf("expected allow once the window slid")
	}
}

func TestOTPRateLimiterRejectsEmptyKey(t *testing.T) {
	l := NewOTPRateLimiter(time.Minute, 5)
	if l.Allow("  ") {
		t.Fatalf("expected empty key to be rejected")
	}
}
