package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	LoginFailures      prometheus.Counter
	Lockouts           prometheus.Counter
	Registrations      *prometheus.CounterVec // mode=team|solo
	JoinDecisions      *prometheus.CounterVec // outcome=accepted|rejected|team_full|...
	WebhookOutcomes    *prometheus.CounterVec // outcome=applied|unknown_order|already_terminal|malformed|throttled
	GatewayCalls       *prometheus.HistogramVec
	NotificationErrors prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		LoginFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_login_failures_total",
			Help: "Failed password checks for existing accounts",
		}),
		Lockouts: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_account_lockouts_total",
			Help: "Accounts locked after repeated login failures",
		}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_registrations_total",
			Help: "Completed registrations by mode",
		}, []string{"mode"}),
		JoinDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_join_decisions_total",
			Help: "Join request decisions by outcome",
		}, []string{"outcome"}),
		WebhookOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_payment_reconcile_total",
			Help: "Payment reconciliation results by outcome",
		}, []string{"outcome"}),
		GatewayCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamreg_gateway_call_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
		NotificationErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_notification_errors_total",
			Help: "Verification messages that could not be handed off",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) IncLoginFailure() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

func (m *Metrics) IncLockout() {
	if m != nil {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) IncRegistration(mode string) {
	if m != nil {
		m.Registrations.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) IncJoinDecision(outcome string) {
	if m != nil {
		m.JoinDecisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncReconcile(outcome string) {
	if m != nil {
		m.WebhookOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveGateway(op, result string, seconds float64) {
	if m != nil {
		m.GatewayCalls.WithLabelValues(op, result).Observe(seconds)
	}
}

func (m *Metrics) IncNotificationError() {
	if m != nil {
		m.NotificationErrors.Inc()
	}
}
