package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finloop/loandesk/internal/domain"
)

func testGuardrail() *Guardrail {
	return &Guardrail{RiskHigh: 0.7, RiskLow: 0.3}
}

func completeProfile(status domain.VerificationStatus) *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		ApplicantID: "a1",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Job:         "clerk",
		Income:      55000,
		Purpose:     "travel",
		Amount:      200000,
		Status:      status,
	}
}

func TestGuardrailMissingIdentity(t *testing.T) {
	g := testGuardrail()
	p := &domain.ApplicantProfile{ApplicantID: "a1", Status: domain.StatusUnknown}

	d, ok := g.Evaluate(p, "what is the interest rate", RiskScore(p))
	require.True(t, ok)
	assert.Equal(t, domain.StageClarification, d.Stage)
	assert.Equal(t, 1.0, d.Confidence)
	assert.True(t, d.GuardrailTriggered)
	assert.False(t, d.TechSupport)
}

func TestGuardrailVerifiedRoutesToDecision(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusVerified)

	d, ok := g.Evaluate(p, "how much can I borrow", RiskScore(p))
	require.True(t, ok)
	assert.Equal(t, domain.StageDecision, d.Stage)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestGuardrailMismatchRoutesToClarification(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusMismatch)

	d, ok := g.Evaluate(p, "hello", RiskScore(p))
	require.True(t, ok)
	assert.Equal(t, domain.StageClarification, d.Stage)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestGuardrailTechSupportSubMode(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusPending)

	d, ok := g.Evaluate(p, "I cannot upload my payslip, the page shows an error", RiskScore(p))
	require.True(t, ok)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, 0.95, d.Confidence)
	assert.True(t, d.TechSupport)
}

// Status rules outrank keyword rules: a verified applicant asking about a
// system error still goes to decision.
func TestGuardrailOrderStatusBeforeKeywords(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusVerified)

	d, ok := g.Evaluate(p, "the system shows an error", RiskScore(p))
	require.True(t, ok)
	assert.Equal(t, domain.StageDecision, d.Stage)
	assert.False(t, d.TechSupport)
}

func TestGuardrailPendingRiskExtremes(t *testing.T) {
	g := testGuardrail()

	high := completeProfile(domain.StatusPending)
	high.Job = "unemployed"
	high.Income = 20000
	high.Purpose = "investment"
	high.Amount = 1200000

	d, ok := g.Evaluate(high, "hello", RiskScore(high))
	require.True(t, ok)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, 0.90, d.Confidence)

	low := completeProfile(domain.StatusPending)
	low.Job = "civil servant"
	low.Income = 120000
	low.Purpose = "home down payment"
	low.Amount = 300000

	d, ok = g.Evaluate(low, "hello", RiskScore(low))
	require.True(t, ok)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, 0.85, d.Confidence)
}

func TestGuardrailNoMatchFallsThrough(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusPending) // risk stays mid-band

	d, ok := g.Evaluate(p, "hello", RiskScore(p))
	assert.False(t, ok)
	assert.Nil(t, d)
}

// Evaluate is pure: same inputs give the same decision and the profile is
// never mutated.
func TestGuardrailPure(t *testing.T) {
	g := testGuardrail()
	p := completeProfile(domain.StatusPending)
	before := *p

	risk := RiskScore(p)
	d1, ok1 := g.Evaluate(p, "the system has a bug", risk)
	d2, ok2 := g.Evaluate(p, "the system has a bug", risk)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, d1, d2)
	assert.Equal(t, before, *p)
}
