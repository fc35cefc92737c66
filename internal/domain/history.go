package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is one append-only row in the applicant's verification
// history. Every verification turn archives a new record so the next
// comparison runs against an up-to-date baseline.
type HistoryRecord struct {
	ID           uuid.UUID   `json:"id"`
	ApplicantID  string      `json:"applicant_id"`
	Name         string      `json:"name,omitempty"`
	Job          string      `json:"job,omitempty"`
	Employer     string      `json:"employer,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Purpose      string      `json:"purpose,omitempty"`
	Income       int64       `json:"income,omitempty"`
	DefaultFlag  bool        `json:"default_flag"`
	InquiryCount int         `json:"inquiry_count"`
	RiskLevel    RiskLevel   `json:"risk_level,omitempty"`
	CheckStatus  CheckStatus `json:"check_status,omitempty"`
	Content      string      `json:"content,omitempty"`
	Embedding    []float32   `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CaseRecord is one closed application in the case library, used only for
// advisory similar-case statistics.
type CaseRecord struct {
	ID             uuid.UUID `json:"id"`
	Content        string    `json:"content"`
	Job            string    `json:"job,omitempty"`
	Income         int64     `json:"income,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	ApprovedAmount int64     `json:"approved_amount,omitempty"`
	Purpose        string    `json:"purpose,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type CaseWithScore struct {
	CaseRecord
	Score float64 `json:"score"`
}
