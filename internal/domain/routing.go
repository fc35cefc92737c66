package domain

type Stage string

const (
	StageClarification Stage = "clarification"
	StageVerification  Stage = "verification"
	StageDecision      Stage = "decision"
)

func ValidStage(s string) bool {
	switch Stage(s) {
	case StageClarification, StageVerification, StageDecision:
		return true
	}
	return false
}

// StageIndex maps a gating-model class index to its stage. Class order is
// fixed by the trained parameters.
func StageIndex(i int) Stage {
	switch i {
	case 1:
		return StageVerification
	case 2:
		return StageDecision
	default:
		return StageClarification
	}
}

// RoutingDecision is produced once per turn and never mutated afterwards.
type RoutingDecision struct {
	Stage              Stage   `json:"stage"`
	Confidence         float64 `json:"confidence"`
	Reason             string  `json:"reason"`
	GuardrailTriggered bool    `json:"guardrail_triggered"`
	// TechSupport marks guardrail rule (d): the verification stage answers
	// with its canned support response and skips history and model calls.
	TechSupport bool `json:"tech_support,omitempty"`
}
