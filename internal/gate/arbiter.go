package gate

import (
	"github.com/finloop/loandesk/internal/domain"
)

const (
	ReasonModelInference = "model inference"
	ReasonFallback       = "fallback"
)

// Arbiter trusts the classifier only above a confidence threshold. Below
// it, or when inference failed outright, routing degrades to a fixed
// status keyed table so behavior stays deterministic and auditable.
type Arbiter struct {
	Threshold          float64
	FallbackConfidence float64
}

// fallbackStage is the fixed lookup keyed by verification status.
func fallbackStage(status domain.VerificationStatus) domain.Stage {
	switch status {
	case domain.StatusPending:
		return domain.StageVerification
	case domain.StatusVerified:
		return domain.StageDecision
	default:
		return domain.StageClarification
	}
}

// Resolve turns classifier output into the final routing decision. probs
// may be nil when inference failed; that path and low confidence both take
// the fallback table.
func (a *Arbiter) Resolve(probs []float64, status domain.VerificationStatus) *domain.RoutingDecision {
	if len(probs) == NumStages {
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}
		if probs[best] >= a.Threshold {
			return &domain.RoutingDecision{
				Stage:      domain.StageIndex(best),
				Confidence: probs[best],
				Reason:     ReasonModelInference,
			}
		}
	}
	return &domain.RoutingDecision{
		Stage:      fallbackStage(status),
		Confidence: a.FallbackConfidence,
		Reason:     ReasonFallback,
	}
}
