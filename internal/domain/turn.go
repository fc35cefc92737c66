package domain

import "github.com/google/uuid"

type NextStep string

const (
	NextContinueCollecting NextStep = "CONTINUE_COLLECTING"
	NextTransferToDecision NextStep = "TRANSFER_TO_DECISION"
	NextForceClarification NextStep = "FORCE_CLARIFICATION"
	NextCaseClosedSuccess  NextStep = "CASE_CLOSED_SUCCESS"
	NextCaseClosedReject   NextStep = "CASE_CLOSED_REJECT"
	NextHumanHandover      NextStep = "HUMAN_HANDOVER"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is what the dialogue collaborator hands the core each turn:
// a completed (or partially completed) profile reference, the current
// free-text query, and recent turn history for keyword detection.
type TurnRequest struct {
	ApplicantID string    `json:"applicant_id"`
	Query       string    `json:"query"`
	History     []Message `json:"history,omitempty"`
}

// TurnResult is the structured outcome of one pipeline turn. Every turn
// yields one; no stage-local failure propagates past the pipeline boundary.
type TurnResult struct {
	TurnID   uuid.UUID          `json:"turn_id"`
	Routing  RoutingDecision    `json:"routing"`
	Response string             `json:"response"`
	NextStep NextStep           `json:"next_step"`
	Status   VerificationStatus `json:"verification_status"`
	Risk     *RiskReport        `json:"risk_report,omitempty"`
	Decision *DecisionReport    `json:"decision_report,omitempty"`
}
