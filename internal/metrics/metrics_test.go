package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Workflow("login", "blocked")
	r.Workflow("login", "blocked")
	r.ObserveDispatch(domain.ChannelMobile, notify.OutcomeDelivered)
	r.OTPIssued(domain.ChannelEmail)

	if got := testutil.ToFloat64(r.workflows.WithLabelValues("login", "blocked")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(r.dispatch.WithLabelValues("mobile", "delivered")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestRecorderHandler(t *testing.T) {
	r := New()
	r.OTPIssued(domain.ChannelMobile)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "monay_auth_otp_issued_total") {
		t.Fatalf("metric missing from output")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Workflow("x", "y")
	r.OTPIssued(domain.ChannelEmail)
	r.ObserveDispatch(domain.ChannelEmail, notify.OutcomeDropped)
}
