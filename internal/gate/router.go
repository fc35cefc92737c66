package gate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
)

// Router composes the pre-filter, the classifier and the arbiter into one
// per-turn routing call. It never returns an error: every failure path
// degrades to the arbiter's fallback table.
type Router struct {
	guardrail    *Guardrail
	classifier   *Classifier
	arbiter      *Arbiter
	embedder     domain.EmbeddingClient
	embedTimeout time.Duration
	logger       *zap.Logger
}

func NewRouter(
	guardrail *Guardrail,
	classifier *Classifier,
	arbiter *Arbiter,
	embedder domain.EmbeddingClient,
	embedTimeout time.Duration,
	logger *zap.Logger,
) *Router {
	return &Router{
		guardrail:    guardrail,
		classifier:   classifier,
		arbiter:      arbiter,
		embedder:     embedder,
		embedTimeout: embedTimeout,
		logger:       logger,
	}
}

// Route produces this turn's routing decision. Recent history widens the
// keyword scan only; the classifier embeds the current query alone.
func (r *Router) Route(ctx context.Context, p *domain.ApplicantProfile, query string, history []domain.Message) *domain.RoutingDecision {
	risk := RiskScore(p)

	keywordText := query
	for _, m := range history {
		keywordText += " " + m.Content
	}

	if d, ok := r.guardrail.Evaluate(p, keywordText, risk); ok {
		r.logger.Info("guardrail short-circuit",
			zap.String("applicant_id", p.ApplicantID),
			zap.String("stage", string(d.Stage)),
			zap.String("reason", d.Reason))
		return d
	}

	probs, err := r.classify(ctx, p, query, risk)
	if err != nil {
		r.logger.Warn("gating inference unavailable, using fallback",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
	}

	d := r.arbiter.Resolve(probs, p.Status)
	r.logger.Info("routing resolved",
		zap.String("applicant_id", p.ApplicantID),
		zap.String("stage", string(d.Stage)),
		zap.Float64("confidence", d.Confidence),
		zap.String("reason", d.Reason))
	return d
}

func (r *Router) classify(ctx context.Context, p *domain.ApplicantProfile, query string, risk float64) ([]float64, error) {
	if r.embedder == nil {
		return nil, &domain.InferenceFailure{
			Component: "gating",
			Err:       errors.New("no embedding client configured"),
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	embedding, err := r.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, err
	}
	return r.classifier.Classify(embedding, StructFeatures(p, risk))
}
