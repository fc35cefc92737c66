package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
)

// consultKeywords mark open-ended product questions rather than data
// provision.
var consultKeywords = []string{
	"how much", "rate", "interest", "what", "eligib", "can i",
	"estimate", "recommend", "how do", "how long", "condition",
	"review", "term", "fee", "worth it",
}

// fieldPrompts ask for one missing slot at a time, in collection order.
var fieldPrompts = []struct {
	field  string
	prompt string
}{
	{"name", "May I have your full name to get started?"},
	{"national_id", "Please provide your national ID number."},
	{"job", "What is your current occupation?"},
	{"income", "What is your monthly income?"},
	{"purpose", "What will the loan be used for?"},
	{"amount", "How much would you like to borrow?"},
}

const responseMismatchClarify = "Some of your information does not match our records. Could you walk me through your current job and contact details?"

const responseConsultFallback = "Our loan terms depend on your income, purpose and amount. Share a few details and I can give you a concrete estimate."

const responseProfileComplete = "Thank you, your application details are complete. We will verify them next."

// ClarificationService runs the dialogue-facing stage in one of two modes:
// consult answers an open product question, guide asks for exactly one
// missing field. The mode choice is a heuristic and deliberately cheap.
type ClarificationService struct {
	llm    domain.LLMClient
	logger *zap.Logger

	consultCutoff   int
	generateTimeout time.Duration
}

func NewClarificationService(llm domain.LLMClient, consultCutoff int, generateTimeout time.Duration, logger *zap.Logger) *ClarificationService {
	return &ClarificationService{
		llm:             llm,
		consultCutoff:   consultCutoff,
		generateTimeout: generateTimeout,
		logger:          logger,
	}
}

// Clarify always continues collection; it never advances the lifecycle.
func (s *ClarificationService) Clarify(ctx context.Context, p *domain.ApplicantProfile, query string) *StageResult {
	mode := s.decideMode(p, query)
	s.logger.Info("clarification turn",
		zap.String("applicant_id", p.ApplicantID),
		zap.String("mode", mode))

	var response string
	if mode == "consult" {
		response = s.consult(ctx, p, query)
	} else {
		response = s.guide(ctx, p, query)
	}

	return &StageResult{
		Response: response,
		NextStep: domain.NextContinueCollecting,
	}
}

// decideMode: a near-empty profile asking a product question, or a
// verified applicant asking anything consult-like, gets consult mode.
// Everything else is guided collection.
func (s *ClarificationService) decideMode(p *domain.ApplicantProfile, query string) string {
	lower := strings.ToLower(query)
	isConsult := false
	for _, kw := range consultKeywords {
		if strings.Contains(lower, kw) {
			isConsult = true
			break
		}
	}

	if p.FilledCount() <= s.consultCutoff && isConsult {
		return "consult"
	}
	if p.Status == domain.StatusVerified && isConsult {
		return "consult"
	}
	return "guide"
}

func (s *ClarificationService) consult(ctx context.Context, p *domain.ApplicantProfile, query string) string {
	if s.llm == nil {
		return responseConsultFallback
	}

	input := query
	if p.FilledCount() > 0 {
		if profileJSON, err := json.Marshal(p); err == nil {
			input = fmt.Sprintf("Customer profile: %s\n\nCustomer question: %s", profileJSON, query)
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	out, err := s.llm.Generate(genCtx, domain.PromptConsult, input)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.Warn("consult reply fell back to canned response",
			zap.String("applicant_id", p.ApplicantID),
			zap.Error(err))
		return responseConsultFallback
	}
	return out
}

// guide asks for the next missing field. The deterministic prompt is
// always available; the generation collaborator only rephrases it.
func (s *ClarificationService) guide(ctx context.Context, p *domain.ApplicantProfile, query string) string {
	if p.Status == domain.StatusMismatch {
		return responseMismatchClarify
	}

	prompt := ""
	for _, fp := range fieldPrompts {
		if !p.FieldFilled(fp.field) {
			prompt = fp.prompt
			break
		}
	}
	if prompt == "" {
		return responseProfileComplete
	}
	if s.llm == nil {
		return prompt
	}

	input := fmt.Sprintf("The applicant said: %q. Ask them for this next: %s", query, prompt)

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	out, err := s.llm.Generate(genCtx, domain.PromptGuide, input)
	if err != nil || strings.TrimSpace(out) == "" {
		return prompt
	}
	return out
}
