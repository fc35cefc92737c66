package gate

import (
	"fmt"
	"strings"

	"github.com/finloop/loandesk/internal/domain"
)

// techSupportKeywords route straight to the verification stage's canned
// support path (no history lookup, no model call).
var techSupportKeywords = []string{
	"system", "error", "cannot", "bug", "failure", "glitch",
	"resubmit", "upload", "document", "verify", "verification", "confirm",
}

// Guardrail is the deterministic pre-filter that runs before any model
// inference. Rules are priority ordered and first-match-wins; a match
// short-circuits routing entirely. Pure over its inputs.
type Guardrail struct {
	RiskHigh float64
	RiskLow  float64
}

// Evaluate applies the rule ladder and reports whether any rule fired.
// risk is the precomputed heuristic score, passed in so a single turn
// computes it exactly once.
func (g *Guardrail) Evaluate(p *domain.ApplicantProfile, query string, risk float64) (*domain.RoutingDecision, bool) {
	// (a) required identity missing
	if missing := p.MissingIdentityFields(); len(missing) > 0 {
		return &domain.RoutingDecision{
			Stage:              domain.StageClarification,
			Confidence:         1.0,
			Reason:             fmt.Sprintf("guardrail: missing identity fields: %s", strings.Join(missing, ", ")),
			GuardrailTriggered: true,
		}, true
	}

	// (b) verified applicants go straight to decision
	if p.Status == domain.StatusVerified {
		return &domain.RoutingDecision{
			Stage:              domain.StageDecision,
			Confidence:         1.0,
			Reason:             "guardrail: verified status",
			GuardrailTriggered: true,
		}, true
	}

	// (c) mismatch needs human-guided clarification
	if p.Status == domain.StatusMismatch {
		return &domain.RoutingDecision{
			Stage:              domain.StageClarification,
			Confidence:         1.0,
			Reason:             "guardrail: data mismatch",
			GuardrailTriggered: true,
		}, true
	}

	// (d) technical support questions bypass classifier and history
	lower := strings.ToLower(query)
	if containsAny(lower, techSupportKeywords) {
		return &domain.RoutingDecision{
			Stage:              domain.StageVerification,
			Confidence:         0.95,
			Reason:             "guardrail: technical support query",
			GuardrailTriggered: true,
			TechSupport:        true,
		}, true
	}

	// (e) pending at either risk extreme skips the classifier
	if p.Status == domain.StatusPending {
		if risk >= g.RiskHigh {
			return &domain.RoutingDecision{
				Stage:              domain.StageVerification,
				Confidence:         0.90,
				Reason:             "guardrail: pending with high risk score",
				GuardrailTriggered: true,
			}, true
		}
		if risk <= g.RiskLow {
			return &domain.RoutingDecision{
				Stage:              domain.StageVerification,
				Confidence:         0.85,
				Reason:             "guardrail: pending with low risk score",
				GuardrailTriggered: true,
			}, true
		}
	}

	return nil, false
}
