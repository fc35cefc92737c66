package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/store"
)

const techSupportResponse = "We detected a technical issue. Please make sure the image is JPG or PNG and under 5MB, then try again."

const (
	responseRiskLow    = "Your information checks out. We are preparing your assessment now."
	responseRiskMedium = "Your application has been received and will go through manual review."
	responseRiskHigh   = "We found discrepancies between your information and our records. Please clarify your current situation."
)

// VerificationService reconciles declared applicant data against the most
// recent historical record and classifies consistency risk. Every
// non-support turn archives a fresh record so the next comparison runs
// against an up-to-date baseline.
type VerificationService struct {
	history  domain.HistoryStore
	llm      domain.LLMClient
	embedder domain.EmbeddingClient
	logger   *zap.Logger

	incomeTolerance float64
	generateTimeout time.Duration
	embedTimeout    time.Duration
	storeTimeout    time.Duration
}

func NewVerificationService(
	history domain.HistoryStore,
	llm domain.LLMClient,
	embedder domain.EmbeddingClient,
	incomeTolerance float64,
	generateTimeout, embedTimeout, storeTimeout time.Duration,
	logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		history:         history,
		llm:             llm,
		embedder:        embedder,
		incomeTolerance: incomeTolerance,
		generateTimeout: generateTimeout,
		embedTimeout:    embedTimeout,
		storeTimeout:    storeTimeout,
		logger:          logger,
	}
}

// Verify runs one verification turn. techSupport marks the guardrail
// sub-mode: a canned reply with no lookup, no model call and no archive.
func (s *VerificationService) Verify(ctx context.Context, p *domain.ApplicantProfile, query string, techSupport bool) *StageResult {
	if techSupport {
		s.logger.Info("verification tech-support sub-mode",
			zap.String("applicant_id", p.ApplicantID))
		return &StageResult{
			Response: techSupportResponse,
			NextStep: domain.NextContinueCollecting,
		}
	}

	hist := s.lookupHistory(ctx, p.ApplicantID)

	mismatches, insufficient := s.compare(p, hist)
	level, checkStatus := classifyRisk(hist, mismatches, insufficient)

	report := &domain.RiskReport{
		ApplicantID:  p.ApplicantID,
		Level:        level,
		Mismatches:   mismatches,
		CheckStatus:  checkStatus,
		PriorDefault: hist != nil && hist.DefaultFlag,
		Rationale:    s.rationale(ctx, p, hist, mismatches, level),
		CreatedAt:    time.Now().UTC(),
	}

	s.archive(ctx, p, hist, report)

	s.logger.Info("verification complete",
		zap.String("applicant_id", p.ApplicantID),
		zap.String("risk_level", string(level)),
		zap.String("check_status", string(checkStatus)),
		zap.Int("mismatches", len(mismatches)))

	switch level {
	case domain.RiskHigh:
		return &StageResult{
			Response: responseRiskHigh,
			NextStep: domain.NextForceClarification,
			Risk:     report,
		}
	case domain.RiskMedium:
		return &StageResult{
			Response: responseRiskMedium,
			NextStep: domain.NextTransferToDecision,
			Risk:     report,
		}
	default:
		return &StageResult{
			Response: responseRiskLow,
			NextStep: domain.NextTransferToDecision,
			Risk:     report,
		}
	}
}

// lookupHistory degrades to nil on any store failure; history being
// unreachable is never fatal to the turn.
func (s *VerificationService) lookupHistory(ctx context.Context, applicantID string) *domain.HistoryRecord {
	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	hist, err := s.history.Latest(lookupCtx, applicantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("history lookup degraded to no-history",
				zap.String("applicant_id", applicantID),
				zap.Error(&domain.LookupFailure{Op: "history.latest", Err: err}))
		}
		return nil
	}
	return hist
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// compare checks declared fields against the historical baseline. Job and
// employer match exactly, phone matches after normalization, income within
// the tolerance band. A field missing on either side counts as
// insufficient rather than mismatched.
func (s *VerificationService) compare(p *domain.ApplicantProfile, hist *domain.HistoryRecord) ([]domain.FieldMismatch, bool) {
	if hist == nil {
		return nil, false
	}

	var mismatches []domain.FieldMismatch
	insufficient := false

	if p.Job == "" || hist.Job == "" {
		insufficient = true
	} else if !strings.EqualFold(strings.TrimSpace(p.Job), strings.TrimSpace(hist.Job)) {
		mismatches = append(mismatches, domain.FieldMismatch{
			Field: "job", Declared: p.Job, Historical: hist.Job,
		})
	}

	if p.Employer == "" || hist.Employer == "" {
		insufficient = true
	} else if !strings.EqualFold(strings.TrimSpace(p.Employer), strings.TrimSpace(hist.Employer)) {
		mismatches = append(mismatches, domain.FieldMismatch{
			Field: "employer", Declared: p.Employer, Historical: hist.Employer,
		})
	}

	if p.Phone == "" || hist.Phone == "" {
		insufficient = true
	} else if normalizePhone(p.Phone) != normalizePhone(hist.Phone) {
		mismatches = append(mismatches, domain.FieldMismatch{
			Field: "phone", Declared: p.Phone, Historical: hist.Phone,
		})
	}

	if p.Income <= 0 || hist.Income <= 0 {
		insufficient = true
	} else {
		diff := p.Income - hist.Income
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > float64(p.Income)*s.incomeTolerance {
			mismatches = append(mismatches, domain.FieldMismatch{
				Field:      "income",
				Declared:   fmt.Sprintf("%d", p.Income),
				Historical: fmt.Sprintf("%d", hist.Income),
			})
		}
	}

	return mismatches, insufficient
}

func hasMismatch(mismatches []domain.FieldMismatch, field string) bool {
	for _, m := range mismatches {
		if m.Field == field {
			return true
		}
	}
	return false
}

// classifyRisk is the deterministic risk table. HIGH on a prior default,
// on job+employer+phone all inconsistent at once, or on two or more
// mismatches. MEDIUM on exactly one mismatch or insufficient data. LOW
// otherwise, including the no-history case.
func classifyRisk(hist *domain.HistoryRecord, mismatches []domain.FieldMismatch, insufficient bool) (domain.RiskLevel, domain.CheckStatus) {
	var status domain.CheckStatus
	switch {
	case hist == nil:
		status = domain.CheckNoHistory
	case len(mismatches) > 0:
		status = domain.CheckMismatch
	case insufficient:
		status = domain.CheckInsufficient
	default:
		status = domain.CheckMatched
	}

	allContact := hasMismatch(mismatches, "job") &&
		hasMismatch(mismatches, "employer") &&
		hasMismatch(mismatches, "phone")

	switch {
	case (hist != nil && hist.DefaultFlag) || allContact || len(mismatches) >= 2:
		return domain.RiskHigh, status
	case len(mismatches) == 1 || (hist != nil && insufficient):
		return domain.RiskMedium, status
	default:
		return domain.RiskLow, status
	}
}

type verificationInput struct {
	Declared   map[string]any         `json:"declared"`
	Historical map[string]any         `json:"historical"`
	Mismatches []domain.FieldMismatch `json:"mismatches,omitempty"`
}

type verificationReply struct {
	RiskLevel   string `json:"risk_level"`
	CheckStatus string `json:"check_status"`
	Rationale   string `json:"rationale"`
}

// rationale asks the generation collaborator for a one-line explanation of
// the already-computed classification. The model never changes the level;
// a disagreement is logged and the deterministic result stands. Any model
// failure, including no client being configured, falls back to a generated
// sentence.
func (s *VerificationService) rationale(ctx context.Context, p *domain.ApplicantProfile, hist *domain.HistoryRecord, mismatches []domain.FieldMismatch, level domain.RiskLevel) string {
	if s.llm == nil {
		return ruleRationale(mismatches, level)
	}

	input := verificationInput{
		Declared: map[string]any{
			"name": p.Name, "job": p.Job, "employer": p.Employer,
			"phone": p.Phone, "income": p.Income, "purpose": p.Purpose,
		},
		Historical: map[string]any{},
		Mismatches: mismatches,
	}
	if hist != nil {
		input.Historical = map[string]any{
			"job": hist.Job, "employer": hist.Employer, "phone": hist.Phone,
			"income": hist.Income, "purpose": hist.Purpose,
			"default_record": hist.DefaultFlag, "inquiry_count": hist.InquiryCount,
		}
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return ruleRationale(mismatches, level)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	out, err := s.llm.Generate(genCtx, domain.PromptVerification, string(raw))
	if err != nil {
		s.logger.Warn("verification rationale fell back to rules",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
		return ruleRationale(mismatches, level)
	}

	var reply verificationReply
	if err := json.Unmarshal([]byte(extractJSON(out)), &reply); err != nil || reply.Rationale == "" {
		s.logger.Warn("verification rationale fell back to rules",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(&domain.ParseFailure{Raw: out, Err: err}))
		return ruleRationale(mismatches, level)
	}
	if domain.ValidRiskLevel(reply.RiskLevel) && domain.RiskLevel(reply.RiskLevel) != level {
		s.logger.Warn("model risk level disagrees with rule classification",
			zap.String("applicant_id", p.ApplicantID),
			zap.String("model_level", reply.RiskLevel),
			zap.String("rule_level", string(level)))
	}
	return reply.Rationale
}

func ruleRationale(mismatches []domain.FieldMismatch, level domain.RiskLevel) string {
	if len(mismatches) == 0 {
		return fmt.Sprintf("risk %s: declared data consistent with records", level)
	}
	fields := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		fields = append(fields, m.Field)
	}
	return fmt.Sprintf("risk %s: inconsistent fields: %s", level, strings.Join(fields, ", "))
}

// archive appends this turn's declared data and classification as the new
// baseline. The inquiry count carries forward and increments; a prior
// default flag is sticky. Archive failure is logged, never fatal.
func (s *VerificationService) archive(ctx context.Context, p *domain.ApplicantProfile, hist *domain.HistoryRecord, report *domain.RiskReport) {
	inquiries := 1
	defaulted := false
	if hist != nil {
		inquiries = hist.InquiryCount + 1
		defaulted = hist.DefaultFlag
	}

	content := fmt.Sprintf(
		"verification archive for %s (%s): job %q at %q, declared income %d, purpose %q, risk %s",
		p.Name, p.ApplicantID, p.Job, p.Employer, p.Income, p.Purpose, report.Level,
	)

	rec := &domain.HistoryRecord{
		ID:           uuid.New(),
		ApplicantID:  p.ApplicantID,
		Name:         p.Name,
		Job:          p.Job,
		Employer:     p.Employer,
		Phone:        p.Phone,
		Purpose:      p.Purpose,
		Income:       p.Income,
		DefaultFlag:  defaulted,
		InquiryCount: inquiries,
		RiskLevel:    report.Level,
		CheckStatus:  report.CheckStatus,
		Content:      content,
	}

	if s.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
		embedding, err := s.embedder.Embed(embedCtx, content)
		cancel()
		if err != nil {
			s.logger.Warn("archive embedding skipped",
				zap.String("applicant_id", p.ApplicantID),
				zap.Error(err))
		} else {
			rec.Embedding = embedding
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.history.Append(storeCtx, rec); err != nil {
		s.logger.Error("archive append failed",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
	}
}

// extractJSON pulls the outermost JSON object out of a model reply that
// may carry stray prose or fencing around it.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
