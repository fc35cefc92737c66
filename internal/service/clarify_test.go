package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/llm"
)

func newClarifyFixture() (*ClarificationService, *llm.MockClient) {
	lc := llm.NewMockClient()
	return NewClarificationService(lc, 2, time.Second, zap.NewNop()), lc
}

func TestClarifyConsultModeForSparseProfile(t *testing.T) {
	svc, lc := newClarifyFixture()
	p := &domain.ApplicantProfile{ApplicantID: "A-1", Name: "Lin Wei", Status: domain.StatusUnknown}

	res := svc.Clarify(context.Background(), p, "what is the interest rate for a personal loan")

	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
	require.Len(t, lc.Calls, 1)
	assert.Equal(t, domain.PromptConsult, lc.Calls[0].Profile)
}

func TestClarifyGuideModeAsksNextMissingField(t *testing.T) {
	svc, lc := newClarifyFixture()
	lc.Err = errors.New("provider down") // deterministic prompt fallback
	p := &domain.ApplicantProfile{
		ApplicantID: "A-1",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Status:      domain.StatusUnknown,
	}

	res := svc.Clarify(context.Background(), p, "my name is Lin Wei")

	assert.Equal(t, "What is your current occupation?", res.Response)
	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
}

func TestClarifyGuideModeFieldOrder(t *testing.T) {
	svc, lc := newClarifyFixture()
	lc.Err = errors.New("provider down")
	p := &domain.ApplicantProfile{ApplicantID: "A-1", Status: domain.StatusUnknown}

	res := svc.Clarify(context.Background(), p, "hello")
	assert.Equal(t, "May I have your full name to get started?", res.Response)

	p.Name = "Lin Wei"
	res = svc.Clarify(context.Background(), p, "Lin Wei")
	assert.Equal(t, "Please provide your national ID number.", res.Response)
}

func TestClarifyVerifiedConsult(t *testing.T) {
	svc, lc := newClarifyFixture()
	p := &domain.ApplicantProfile{
		ApplicantID: "A-1",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Job:         "teacher",
		Income:      70000,
		Purpose:     "education",
		Amount:      200000,
		Status:      domain.StatusVerified,
	}

	svc.Clarify(context.Background(), p, "what repayment term would you recommend")

	require.Len(t, lc.Calls, 1)
	assert.Equal(t, domain.PromptConsult, lc.Calls[0].Profile)
}

func TestClarifyMismatchAsksForExplanation(t *testing.T) {
	svc, _ := newClarifyFixture()
	p := &domain.ApplicantProfile{
		ApplicantID: "A-1",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Job:         "nurse",
		Income:      60000,
		Purpose:     "medical",
		Amount:      300000,
		Status:      domain.StatusMismatch,
	}

	res := svc.Clarify(context.Background(), p, "here is my updated information")

	assert.Equal(t, responseMismatchClarify, res.Response)
	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
}

func TestClarifyWithoutModelClient(t *testing.T) {
	svc := NewClarificationService(nil, 2, time.Second, zap.NewNop())

	p := &domain.ApplicantProfile{ApplicantID: "A-1", Status: domain.StatusUnknown}
	res := svc.Clarify(context.Background(), p, "what is the interest rate")
	assert.Equal(t, responseConsultFallback, res.Response)

	res = svc.Clarify(context.Background(), p, "hello")
	assert.Equal(t, "May I have your full name to get started?", res.Response)
	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
}

func TestClarifyConsultFallbackWhenModelFails(t *testing.T) {
	svc, lc := newClarifyFixture()
	lc.Err = errors.New("provider down")
	p := &domain.ApplicantProfile{ApplicantID: "A-1", Status: domain.StatusUnknown}

	res := svc.Clarify(context.Background(), p, "what is the interest rate")

	assert.NotEmpty(t, res.Response)
	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
}
