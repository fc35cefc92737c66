package domain

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func ValidRiskLevel(r string) bool {
	switch RiskLevel(r) {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

type CheckStatus string

const (
	CheckMatched      CheckStatus = "MATCHED"
	CheckMismatch     CheckStatus = "MISMATCH_FOUND"
	CheckInsufficient CheckStatus = "INSUFFICIENT_DATA"
	CheckNoHistory    CheckStatus = "NO_HISTORY"
)

// FieldMismatch records one declared-vs-historical discrepancy.
type FieldMismatch struct {
	Field      string `json:"field"`
	Declared   string `json:"declared"`
	Historical string `json:"historical"`
}

// RiskReport is the verification stage's outcome. It is archived as a
// historical record and, on LOW/MEDIUM, handed directly to the decision
// stage within the same turn.
type RiskReport struct {
	ApplicantID  string          `json:"applicant_id"`
	Level        RiskLevel       `json:"risk_level"`
	Mismatches   []FieldMismatch `json:"mismatches,omitempty"`
	CheckStatus  CheckStatus     `json:"check_status"`
	PriorDefault bool            `json:"prior_default"`
	Rationale    string          `json:"rationale,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
