package domain

type Outcome string

const (
	OutcomeApprove  Outcome = "APPROVE"
	OutcomeEscalate Outcome = "ESCALATE"
	OutcomeReject   Outcome = "REJECT"
)

func ValidOutcome(o string) bool {
	switch Outcome(o) {
	case OutcomeApprove, OutcomeEscalate, OutcomeReject:
		return true
	}
	return false
}

// Severity orders outcomes from most to least permissive. The safety guard
// may only move an outcome toward higher severity.
func (o Outcome) Severity() int {
	switch o {
	case OutcomeEscalate:
		return 1
	case OutcomeReject:
		return 2
	default:
		return 0
	}
}

// Tighten returns the stricter of the current and proposed outcomes. A
// guard that proposes a looser outcome than the one already in force is a
// no-op.
func (o Outcome) Tighten(to Outcome) Outcome {
	if to.Severity() > o.Severity() {
		return to
	}
	return o
}

// Guard rule identifiers, in evaluation order.
const (
	GuardInsufficientData = "insufficient_data"
	GuardDBRCeiling       = "dbr_ceiling"
	GuardScoreFloor       = "score_floor"
)

// GuardOverride records one fired safety-guard rule. It is a logged
// divergence between the proposed and final outcome, not an error.
type GuardOverride struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// CaseReference carries advisory statistics from the similar-case lookup.
// It informs the proposed outcome but never overrides the safety guard.
type CaseReference struct {
	Cases             []CaseWithScore `json:"cases,omitempty"`
	ApprovalRate      *float64        `json:"approval_rate,omitempty"`
	AvgApprovedAmount *float64        `json:"avg_approved_amount,omitempty"`
	Recommendation    string          `json:"recommendation,omitempty"`
}

// DecisionReport is the decision stage's terminal output for a turn.
type DecisionReport struct {
	Outcome     Outcome         `json:"outcome"`
	Proposed    Outcome         `json:"proposed_outcome"`
	DBR         float64         `json:"dbr"`
	CreditScore int             `json:"credit_score"`
	Overrides   []GuardOverride `json:"guard_overrides,omitempty"`
	Advisory    *CaseReference  `json:"advisory,omitempty"`
	Mode        string          `json:"mode"` // "model" or "rules"
}
