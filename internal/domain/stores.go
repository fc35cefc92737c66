package domain

import "context"

// HistoryStore is the append-only verification history. Latest returns
// store.ErrNotFound when the applicant has no history.
type HistoryStore interface {
	Latest(ctx context.Context, applicantID string) (*HistoryRecord, error)
	Append(ctx context.Context, rec *HistoryRecord) error
}

// CaseStore is the similarity-searchable library of closed applications.
type CaseStore interface {
	Similar(ctx context.Context, embedding []float32, topK int) ([]CaseWithScore, error)
	Add(ctx context.Context, c *CaseRecord) error
}

// ProfileStore holds applicant session state. UpdateStatus performs an
// optimistic check-and-set: it fails with ErrInvalidTransition when the
// stored status no longer matches from, so a second concurrent message
// from the same applicant cannot race the lifecycle.
type ProfileStore interface {
	Get(ctx context.Context, applicantID string) (*ApplicantProfile, error)
	Put(ctx context.Context, p *ApplicantProfile) error
	UpdateStatus(ctx context.Context, applicantID string, from, to VerificationStatus) (*ApplicantProfile, error)
}

// PromptProfile selects which instruction context and sampling mode the
// generation collaborator uses. Verification and decision run the
// low-temperature deterministic mode; consult is open-ended.
type PromptProfile string

const (
	PromptVerification PromptProfile = "verification"
	PromptDecision     PromptProfile = "decision"
	PromptConsult      PromptProfile = "consult"
	PromptGuide        PromptProfile = "guide"
)

// LLMClient is the text-generation collaborator. A transport error or
// timeout surfaces as *InferenceFailure; a well-formed transport reply with
// unusable content is the caller's ParseFailure, so the two are always
// distinguishable.
type LLMClient interface {
	Generate(ctx context.Context, profile PromptProfile, input string) (string, error)
}

// EmbeddingClient turns text into a vector for the gating model's text
// stream and for archive/case-library rows.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
