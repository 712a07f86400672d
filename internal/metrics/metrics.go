// Package metrics defines the Prometheus collectors for the account service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics contains custom Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	AuthOperations  *prometheus.CounterVec
	TokensIssued    *prometheus.CounterVec
	GuardRejections *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
	TokensSwept     prometheus.Counter
}

// New creates and registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academy_auth_operations_total",
				Help: "Total number of credential operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academy_tokens_issued_total",
				Help: "Total number of tokens issued by kind",
			},
			[]string{"kind"},
		),
		GuardRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academy_guard_rejections_total",
				Help: "Total number of requests rejected by the authorization guard by error code",
			},
			[]string{"code"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "academy_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter by route",
			},
			[]string{"route"},
		),
		TokensSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "academy_expired_tokens_swept_total",
				Help: "Total number of expired refresh and reset tokens cleared",
			},
		),
	}

	reg.MustRegister(m.AuthOperations)
	reg.MustRegister(m.TokensIssued)
	reg.MustRegister(m.GuardRejections)
	reg.MustRegister(m.RateLimited)
	reg.MustRegister(m.TokensSwept)

	return m
}

// ObserveAuth records the outcome of a credential operation.
func (m *Metrics) ObserveAuth(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// TokenIssued counts an issued token of kind access, refresh or reset.
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

// GuardRejected counts a guard rejection by error code.
func (m *Metrics) GuardRejected(code string) {
	if m == nil {
		return
	}
	m.GuardRejections.WithLabelValues(code).Inc()
}

// RateLimitHit counts a rate-limited request.
func (m *Metrics) RateLimitHit(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// Swept counts tokens cleared by the expiry sweeper.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensSwept.Add(float64(n))
}
