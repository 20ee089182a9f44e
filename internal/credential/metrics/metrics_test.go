package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveVerification(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveVerification("WorldID", true, "", 20*time.Millisecond)
	m.ObserveVerification("WorldID", false, "semantic_rejection", 30*time.Millisecond)
	m.ObserveVerification("WorldID", false, "semantic_rejection", 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("WorldID", OutcomeValid, "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("WorldID", OutcomeInvalid, "semantic_rejection")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.VerifyDurationSeconds))
}

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncDuplicateClaim("WorldID")
	m.IncEventPublishFailure()
	m.IncEventPublishFailure()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateClaimsTotal.WithLabelValues("WorldID")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventPublishFailsTotal))
}
