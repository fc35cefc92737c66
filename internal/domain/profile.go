package domain

import "time"

type VerificationStatus string

const (
	StatusUnknown  VerificationStatus = "unknown"
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusMismatch VerificationStatus = "mismatch"
)

func ValidVerificationStatus(s string) bool {
	switch VerificationStatus(s) {
	case StatusUnknown, StatusPending, StatusVerified, StatusMismatch:
		return true
	}
	return false
}

// Index maps the status onto the ordinal the gating model was trained with.
func (s VerificationStatus) Index() int {
	switch s {
	case StatusPending:
		return 1
	case StatusVerified:
		return 2
	case StatusMismatch:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo enforces the verification lifecycle:
// unknown -> pending -> {verified, mismatch} -> pending (loop).
// The status never moves backwards past pending and never skips a step.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	switch s {
	case StatusUnknown:
		return next == StatusPending
	case StatusPending:
		return next == StatusVerified || next == StatusMismatch
	case StatusVerified, StatusMismatch:
		return next == StatusPending
	}
	return false
}

// ApplicantProfile is the shared record collected by the dialogue
// collaborator. The routing core reads it and requests status transitions
// but does not own its lifecycle.
type ApplicantProfile struct {
	ApplicantID string             `json:"applicant_id"`
	Name        string             `json:"name,omitempty"`
	NationalID  string             `json:"national_id,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Job         string             `json:"job,omitempty"`
	Employer    string             `json:"employer,omitempty"`
	Income      int64              `json:"income,omitempty"`
	Purpose     string             `json:"purpose,omitempty"`
	Amount      int64              `json:"amount,omitempty"`
	Status      VerificationStatus `json:"verification_status"`
	RetryCount  int                `json:"retry_count,omitempty"`
	LastAsked   string             `json:"last_asked,omitempty"`
	CreatedAt   time.Time          `json:"created_at,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at,omitempty"`
}

// profileFields are the slots the gating model was trained on, in the
// order used for completeness scoring.
var profileFields = []string{"name", "national_id", "job", "income", "purpose", "amount"}

// FieldFilled reports whether the named slot carries a value.
func (p *ApplicantProfile) FieldFilled(name string) bool {
	switch name {
	case "name":
		return p.Name != ""
	case "national_id":
		return p.NationalID != ""
	case "phone":
		return p.Phone != ""
	case "job":
		return p.Job != ""
	case "employer":
		return p.Employer != ""
	case "income":
		return p.Income > 0
	case "purpose":
		return p.Purpose != ""
	case "amount":
		return p.Amount > 0
	}
	return false
}

// MissingIdentityFields returns the required identity fields that are
// absent. A non-empty result short-circuits routing to clarification.
func (p *ApplicantProfile) MissingIdentityFields() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.NationalID == "" {
		missing = append(missing, "national_id")
	}
	return missing
}

// FilledCount reports how many of the tracked slots carry a value.
func (p *ApplicantProfile) FilledCount() int {
	n := 0
	for _, f := range profileFields {
		if p.FieldFilled(f) {
			n++
		}
	}
	return n
}

// Completeness is the filled-slot ratio in [0,1].
func (p *ApplicantProfile) Completeness() float64 {
	return float64(p.FilledCount()) / float64(len(profileFields))
}
