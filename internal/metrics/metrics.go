// Package metrics expone contadores Prometheus de los flujos de cuenta y del envio de OTPs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monay-auth/internal/domain"
	"monay-auth/internal/notify"
)

// Recorder agrupa los collectors registrados en un Registry propio.
type Recorder struct {
	registry  *prometheus.Registry
	workflows *prometheus.CounterVec
	dispatch  *prometheus.CounterVec
	otpIssued *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monay_auth",
			Name:      "workflow_results_total",
			Help:      "Account workflow results by operation and status.",
		}, []string{"operation", "status"}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monay_auth",
			Name:      "notification_dispatch_total",
			Help:      "Final notification outcomes by channel.",
		}, []string{"channel", "outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monay_auth",
			Name:      "otp_issued_total",
			Help:      "OTP codes issued by channel.",
		}, []string{"channel"}),
	}
	r.registry.MustRegister(r.workflows, r.dispatch, r.otpIssued)
	return r
}

// Workflow cuenta el resultado de una operacion. Nil-safe.
func (r *Recorder) Workflow(operation, status string) {
	if r == nil {
		return
	}
	r.workflows.WithLabelValues(operation, status).Inc()
}

func (r *Recorder) OTPIssued(ch domain.Channel) {
	if r == nil {
		return
	}
	r.otpIssued.WithLabelValues(string(ch)).Inc()
}

// ObserveDispatch cumple notify.ObserveFunc.
func (r *Recorder) ObserveDispatch(ch domain.Channel, outcome notify.Outcome) {
	if r == nil {
		return
	}
	r.dispatch.WithLabelValues(string(ch), string(outcome)).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
