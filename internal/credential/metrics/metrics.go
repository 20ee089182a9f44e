// Package metrics provides Prometheus metrics for credential verification.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
)

// Metrics contains the verification metrics.
type Metrics struct {
	VerificationsTotal     *prometheus.CounterVec   // by provider, outcome, failure category
	VerifyDurationSeconds  *prometheus.HistogramVec // provider round-trip latency
	DuplicateClaimsTotal   *prometheus.CounterVec   // valid proofs rejected because another address owns them
	EventPublishFailsTotal prometheus.Counter
}

// New registers the metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iam_credential_verifications_total",
			Help: "Total credential verifications by provider, outcome and failure category",
		}, []string{"provider", "outcome", "category"}),

		VerifyDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iam_credential_verify_duration_seconds",
			Help:    "Duration of provider verification calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		DuplicateClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iam_credential_duplicate_claims_total",
			Help: "Valid credentials rejected because they were already claimed by another address",
		}, []string{"provider"}),

		EventPublishFailsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "iam_credential_event_publish_failures_total",
			Help: "Verification events that could not be handed to the event bus",
		}),
	}
}

// ObserveVerification records one provider outcome and its latency.
// category is empty for valid outcomes.
func (m *Metrics) ObserveVerification(provider string, valid bool, category string, duration time.Duration) {
	outcome := OutcomeInvalid
	if valid {
		outcome = OutcomeValid
	}
	m.VerificationsTotal.WithLabelValues(provider, outcome, category).Inc()
	m.VerifyDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) IncDuplicateClaim(provider string) {
	m.DuplicateClaimsTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncEventPublishFailure() {
	m.EventPublishFailsTotal.Inc()
}
