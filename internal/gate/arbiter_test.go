package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finloop/loandesk/internal/domain"
)

func testArbiter() *Arbiter {
	return &Arbiter{Threshold: 0.6, FallbackConfidence: 0.75}
}

func TestArbiterAcceptsConfidentClassification(t *testing.T) {
	a := testArbiter()

	d := a.Resolve([]float64{0.1, 0.8, 0.1}, domain.StatusUnknown)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, 0.8, d.Confidence)
	assert.Equal(t, ReasonModelInference, d.Reason)
	assert.False(t, d.GuardrailTriggered)
}

func TestArbiterFallbackTable(t *testing.T) {
	a := testArbiter()
	lowConfidence := []float64{0.34, 0.33, 0.33}

	cases := []struct {
		status domain.VerificationStatus
		want   domain.Stage
	}{
		{domain.StatusUnknown, domain.StageClarification},
		{domain.StatusPending, domain.StageVerification},
		{domain.StatusVerified, domain.StageDecision},
		{domain.StatusMismatch, domain.StageClarification},
	}
	for _, tc := range cases {
		d := a.Resolve(lowConfidence, tc.status)
		assert.Equal(t, tc.want, d.Stage, "status %s", tc.status)
		assert.Equal(t, 0.75, d.Confidence)
		assert.Equal(t, ReasonFallback, d.Reason)
	}
}

func TestArbiterFallbackOnMissingInference(t *testing.T) {
	a := testArbiter()

	d := a.Resolve(nil, domain.StatusPending)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, 0.75, d.Confidence)
	assert.Equal(t, ReasonFallback, d.Reason)
}

func TestArbiterThresholdIsInclusive(t *testing.T) {
	a := testArbiter()

	d := a.Resolve([]float64{0.6, 0.25, 0.15}, domain.StatusPending)
	assert.Equal(t, domain.StageClarification, d.Stage)
	assert.Equal(t, ReasonModelInference, d.Reason)
}
