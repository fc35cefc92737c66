package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/gate"
	"github.com/finloop/loandesk/internal/store"
)

// Rule-fallback thresholds for the proposed outcome. These are softer than
// the safety-guard limits on purpose: the guard is the hard floor, the
// rule table is a conservative stand-in for the model.
const (
	ruleDBRReject   = 45.0
	ruleDBREscalate = 30.0

	// lowApprovalRate is the advisory cutoff below which an otherwise
	// clean application is escalated for manual review.
	lowApprovalRate = 0.3

	scoreGood         = 700
	scoreWeak         = 600
	scoreIncomeCutoff = 40000

	// scoreStabilityPenalty is subtracted for occupations in the
	// unstable-employment table.
	scoreStabilityPenalty = 50

	similarCasesTopK = 3
)

const (
	responseApproved  = "Congratulations, your credit profile meets our standard. A preliminary amount has been approved."
	responseRejected  = "Thank you for applying. After a full assessment we are unable to approve this loan at this time."
	responseEscalated = "Your application has been received and will be reviewed by a loan officer."
)

// DecisionService computes the financial metrics, obtains a proposed
// outcome from the generation collaborator or the rule table, and applies
// the safety guard. The guard runs after every proposed outcome and can
// only tighten it.
type DecisionService struct {
	history  domain.HistoryStore
	cases    domain.CaseStore
	llm      domain.LLMClient
	embedder domain.EmbeddingClient
	logger   *zap.Logger

	termMonths     int
	flatRate       float64
	baselineIncome int64
	dbrReject      float64
	minScore       int

	generateTimeout time.Duration
	embedTimeout    time.Duration
	storeTimeout    time.Duration
}

func NewDecisionService(
	history domain.HistoryStore,
	cases domain.CaseStore,
	llm domain.LLMClient,
	embedder domain.EmbeddingClient,
	termMonths int,
	flatRate float64,
	baselineIncome int64,
	dbrReject float64,
	minScore int,
	generateTimeout, embedTimeout, storeTimeout time.Duration,
	logger *zap.Logger,
) *DecisionService {
	return &DecisionService{
		history:         history,
		cases:           cases,
		llm:             llm,
		embedder:        embedder,
		termMonths:      termMonths,
		flatRate:        flatRate,
		baselineIncome:  baselineIncome,
		dbrReject:       dbrReject,
		minScore:        minScore,
		generateTimeout: generateTimeout,
		embedTimeout:    embedTimeout,
		storeTimeout:    storeTimeout,
		logger:          logger,
	}
}

// Decide runs one decision turn. risk carries the same-turn RiskReport
// when the dispatcher auto-forwarded from verification; it may be nil for
// an already-verified applicant returning later.
func (s *DecisionService) Decide(ctx context.Context, p *domain.ApplicantProfile, risk *domain.RiskReport) *StageResult {
	income := s.resolveIncome(ctx, p)
	dbr := s.computeDBR(p.Amount, income)
	score := creditScore(income, p.Job)

	advisory := s.similarCases(ctx, p)

	riskLevel := domain.RiskLow
	if risk != nil {
		riskLevel = risk.Level
	}

	proposed, mode := s.proposeOutcome(ctx, p, riskLevel, dbr, score, advisory)
	final, overrides := s.applyGuard(proposed, p, dbr, score)

	for _, ov := range overrides {
		s.logger.Warn("safety guard override",
			zap.String("applicant_id", p.ApplicantID),
			zap.String("rule", ov.Rule),
			zap.String("reason", ov.Reason),
			zap.String("proposed", string(proposed)),
			zap.String("final", string(final)))
	}

	report := &domain.DecisionReport{
		Outcome:     final,
		Proposed:    proposed,
		DBR:         dbr,
		CreditScore: score,
		Overrides:   overrides,
		Advisory:    advisory,
		Mode:        mode,
	}

	s.logger.Info("decision complete",
		zap.String("applicant_id", p.ApplicantID),
		zap.String("outcome", string(final)),
		zap.Float64("dbr", dbr),
		zap.Int("credit_score", score),
		zap.String("mode", mode))

	switch final {
	case domain.OutcomeApprove:
		return &StageResult{
			Response: responseApproved,
			NextStep: domain.NextCaseClosedSuccess,
			Risk:     risk,
			Decision: report,
		}
	case domain.OutcomeReject:
		return &StageResult{
			Response: responseRejected,
			NextStep: domain.NextCaseClosedReject,
			Risk:     risk,
			Decision: report,
		}
	default:
		return &StageResult{
			Response: responseEscalated,
			NextStep: domain.NextHumanHandover,
			Risk:     risk,
			Decision: report,
		}
	}
}

// resolveIncome prefers the declared income, then the latest historical
// record, then the configured baseline so the ratio stays computable.
func (s *DecisionService) resolveIncome(ctx context.Context, p *domain.ApplicantProfile) int64 {
	if p.Income > 0 {
		return p.Income
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	hist, err := s.history.Latest(lookupCtx, p.ApplicantID)
	if err == nil && hist.Income > 0 {
		return hist.Income
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("income lookup degraded to baseline",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
	}
	return s.baselineIncome
}

// computeDBR returns the debt-to-burden ratio in percent: flat-rate
// monthly payment over monthly income.
func (s *DecisionService) computeDBR(amount, income int64) float64 {
	if amount <= 0 || income <= 0 {
		return 0
	}
	monthly := float64(amount) * (1 + s.flatRate) / float64(s.termMonths)
	return monthly / float64(income) * 100
}

// creditScore is a coarse proxy: an income-keyed base minus a stability
// penalty for high-risk occupations.
func creditScore(income int64, job string) int {
	score := scoreWeak
	if income > scoreIncomeCutoff {
		score = scoreGood
	}
	if gate.HighRiskJob(job) {
		score -= scoreStabilityPenalty
	}
	return score
}

// similarCases produces advisory statistics from the case library. Any
// failure, including no embedding client being configured, degrades to no
// advisory; it never affects turn completion.
func (s *DecisionService) similarCases(ctx context.Context, p *domain.ApplicantProfile) *domain.CaseReference {
	if s.embedder == nil {
		return nil
	}

	summary := fmt.Sprintf("job %s, monthly income %d, amount %d, purpose %s",
		p.Job, p.Income, p.Amount, p.Purpose)

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	embedding, err := s.embedder.Embed(embedCtx, summary)
	cancel()
	if err != nil {
		s.logger.Warn("advisory lookup skipped",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	cases, err := s.cases.Similar(storeCtx, embedding, similarCasesTopK)
	if err != nil {
		s.logger.Warn("advisory lookup skipped",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(&domain.LookupFailure{Op: "cases.similar", Err: err}))
		return nil
	}
	if len(cases) == 0 {
		return nil
	}

	approved := 0
	var approvedSum int64
	for _, c := range cases {
		if c.Outcome == domain.OutcomeApprove {
			approved++
			approvedSum += c.ApprovedAmount
		}
	}

	rate := float64(approved) / float64(len(cases))
	ref := &domain.CaseReference{
		Cases:        cases,
		ApprovalRate: &rate,
	}
	if approved > 0 {
		avg := float64(approvedSum) / float64(approved)
		ref.AvgApprovedAmount = &avg
	}
	switch {
	case rate >= 0.7:
		ref.Recommendation = "similar cases were mostly approved"
	case rate < lowApprovalRate:
		ref.Recommendation = "similar cases were rarely approved, review carefully"
	default:
		ref.Recommendation = "similar cases show mixed outcomes"
	}
	return ref
}

type decisionContext struct {
	Amount            int64    `json:"requested_amount"`
	DBR               float64  `json:"dbr_percent"`
	CreditScore       int      `json:"credit_score"`
	RiskLevel         string   `json:"verification_risk"`
	ApprovalRate      *float64 `json:"similar_approval_rate,omitempty"`
	AvgApprovedAmount *float64 `json:"similar_avg_approved_amount,omitempty"`
}

type decisionReply struct {
	Outcome   string `json:"outcome"`
	Rationale string `json:"rationale"`
}

// proposeOutcome asks the generation collaborator for a proposal and falls
// back to the rule table on any failure, including no client being
// configured. The returned mode records which path produced it.
func (s *DecisionService) proposeOutcome(ctx context.Context, p *domain.ApplicantProfile, riskLevel domain.RiskLevel, dbr float64, score int, advisory *domain.CaseReference) (domain.Outcome, string) {
	if s.llm == nil {
		return s.ruleOutcome(riskLevel, dbr, score, advisory), "rules"
	}

	dc := decisionContext{
		Amount:      p.Amount,
		DBR:         dbr,
		CreditScore: score,
		RiskLevel:   string(riskLevel),
	}
	if advisory != nil {
		dc.ApprovalRate = advisory.ApprovalRate
		dc.AvgApprovedAmount = advisory.AvgApprovedAmount
	}

	raw, err := json.Marshal(dc)
	if err != nil {
		return s.ruleOutcome(riskLevel, dbr, score, advisory), "rules"
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	out, err := s.llm.Generate(genCtx, domain.PromptDecision, string(raw))
	if err != nil {
		s.logger.Warn("decision proposal fell back to rules",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
		return s.ruleOutcome(riskLevel, dbr, score, advisory), "rules"
	}

	var reply decisionReply
	if err := json.Unmarshal([]byte(extractJSON(out)), &reply); err != nil || !domain.ValidOutcome(reply.Outcome) {
		s.logger.Warn("decision proposal fell back to rules",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(&domain.ParseFailure{Raw: out, Err: err}))
		return s.ruleOutcome(riskLevel, dbr, score, advisory), "rules"
	}

	return domain.Outcome(reply.Outcome), "model"
}

// ruleOutcome is the deterministic stand-in for the model. Hard limits
// first, then the escalation band, then the advisory nudge.
func (s *DecisionService) ruleOutcome(riskLevel domain.RiskLevel, dbr float64, score int, advisory *domain.CaseReference) domain.Outcome {
	switch {
	case riskLevel == domain.RiskHigh || score < s.minScore || dbr > ruleDBRReject:
		return domain.OutcomeReject
	case riskLevel == domain.RiskMedium || dbr > ruleDBREscalate:
		return domain.OutcomeEscalate
	}
	if advisory != nil && advisory.ApprovalRate != nil && *advisory.ApprovalRate < lowApprovalRate {
		return domain.OutcomeEscalate
	}
	return domain.OutcomeApprove
}

// applyGuard is the monotonic safety guard: fixed rule order, each rule
// may only tighten the outcome. Re-applying it to its own output changes
// nothing.
func (s *DecisionService) applyGuard(proposed domain.Outcome, p *domain.ApplicantProfile, dbr float64, score int) (domain.Outcome, []domain.GuardOverride) {
	final := proposed
	var overrides []domain.GuardOverride

	apply := func(rule string, to domain.Outcome, reason string) {
		tightened := final.Tighten(to)
		if tightened != final {
			final = tightened
			overrides = append(overrides, domain.GuardOverride{Rule: rule, Reason: reason})
		}
	}

	if p.Income <= 0 || p.Job == "" {
		apply(domain.GuardInsufficientData, domain.OutcomeEscalate,
			"income or employment data missing")
	}
	if dbr > s.dbrReject {
		apply(domain.GuardDBRCeiling, domain.OutcomeReject,
			fmt.Sprintf("debt-to-burden ratio %.1f%% exceeds %.0f%%", dbr, s.dbrReject))
	}
	if score < s.minScore {
		apply(domain.GuardScoreFloor, domain.OutcomeReject,
			fmt.Sprintf("credit score %d below %d", score, s.minScore))
	}

	return final, overrides
}
