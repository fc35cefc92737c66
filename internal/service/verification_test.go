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
	"github.com/finloop/loandesk/internal/embedding"
	"github.com/finloop/loandesk/internal/llm"
)

func newVerificationFixture() (*VerificationService, *memHistoryStore, *llm.MockClient, *embedding.MockClient) {
	hist := newMemHistoryStore()
	lc := llm.NewMockClient()
	ec := embedding.NewMockClient()
	svc := NewVerificationService(hist, lc, ec, 0.2, time.Second, time.Second, time.Second, zap.NewNop())
	return svc, hist, lc, ec
}

func pendingProfile() *domain.ApplicantProfile {
	return &domain.ApplicantProfile{
		ApplicantID: "A-100",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Phone:       "0912-345-678",
		Job:         "nurse",
		Employer:    "City Hospital",
		Income:      60000,
		Purpose:     "medical",
		Amount:      300000,
		Status:      domain.StatusPending,
	}
}

func baselineRecord(p *domain.ApplicantProfile) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		ApplicantID:  p.ApplicantID,
		Name:         p.Name,
		Job:          p.Job,
		Employer:     p.Employer,
		Phone:        p.Phone,
		Income:       p.Income,
		Purpose:      p.Purpose,
		InquiryCount: 1,
	}
}

func TestVerifyNoHistoryIsLowRisk(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()

	res := svc.Verify(context.Background(), p, "please check my data", false)

	require.NotNil(t, res.Risk)
	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.Equal(t, domain.CheckNoHistory, res.Risk.CheckStatus)
	assert.Equal(t, domain.NextTransferToDecision, res.NextStep)
	assert.Equal(t, 1, hist.count(p.ApplicantID))
	assert.Equal(t, 1, hist.last(p.ApplicantID).InquiryCount)
}

func TestVerifyCleanHistoryMatches(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	require.NoError(t, hist.Append(context.Background(), baselineRecord(p)))

	res := svc.Verify(context.Background(), p, "everything is the same", false)

	require.NotNil(t, res.Risk)
	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.Equal(t, domain.CheckMatched, res.Risk.CheckStatus)
	assert.Empty(t, res.Risk.Mismatches)
	assert.Equal(t, domain.NextTransferToDecision, res.NextStep)
}

func TestVerifyPhoneNormalization(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	rec := baselineRecord(p)
	rec.Phone = "0912345678"
	require.NoError(t, hist.Append(context.Background(), rec))

	res := svc.Verify(context.Background(), p, "check", false)

	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.Empty(t, res.Risk.Mismatches)
}

func TestVerifyIncomeToleranceBand(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	rec := baselineRecord(p)
	rec.Income = 50000 // within 20% of declared 60000
	require.NoError(t, hist.Append(context.Background(), rec))

	res := svc.Verify(context.Background(), p, "check", false)
	assert.Equal(t, domain.RiskLow, res.Risk.Level)

	hist2 := newMemHistoryStore()
	svc2 := NewVerificationService(hist2, llm.NewMockClient(), embedding.NewMockClient(), 0.2, time.Second, time.Second, time.Second, zap.NewNop())
	rec2 := baselineRecord(p)
	rec2.Income = 30000 // half the declared income
	require.NoError(t, hist2.Append(context.Background(), rec2))

	res2 := svc2.Verify(context.Background(), p, "check", false)
	assert.Equal(t, domain.RiskMedium, res2.Risk.Level)
	assert.Equal(t, domain.CheckMismatch, res2.Risk.CheckStatus)
	require.Len(t, res2.Risk.Mismatches, 1)
	assert.Equal(t, "income", res2.Risk.Mismatches[0].Field)
}

func TestVerifyTwoMismatchesIsHighRisk(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	rec := baselineRecord(p)
	rec.Job = "driver"
	rec.Phone = "0999-000-111"
	require.NoError(t, hist.Append(context.Background(), rec))

	res := svc.Verify(context.Background(), p, "check", false)

	require.NotNil(t, res.Risk)
	assert.Equal(t, domain.RiskHigh, res.Risk.Level)
	assert.Len(t, res.Risk.Mismatches, 2)
	assert.Equal(t, domain.NextForceClarification, res.NextStep)
}

func TestVerifyPriorDefaultIsHighRisk(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	rec := baselineRecord(p)
	rec.DefaultFlag = true
	require.NoError(t, hist.Append(context.Background(), rec))

	res := svc.Verify(context.Background(), p, "check", false)

	assert.Equal(t, domain.RiskHigh, res.Risk.Level)
	assert.True(t, res.Risk.PriorDefault)
	assert.Equal(t, domain.NextForceClarification, res.NextStep)
	// the default flag stays sticky on the new archive row
	assert.True(t, hist.last(p.ApplicantID).DefaultFlag)
}

func TestVerifyInsufficientDataIsMediumRisk(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	p.Employer = ""
	require.NoError(t, hist.Append(context.Background(), baselineRecord(pendingProfile())))

	res := svc.Verify(context.Background(), p, "check", false)

	assert.Equal(t, domain.RiskMedium, res.Risk.Level)
	assert.Equal(t, domain.CheckInsufficient, res.Risk.CheckStatus)
	assert.Equal(t, domain.NextTransferToDecision, res.NextStep)
}

func TestVerifyLookupFailureDegradesToNoHistory(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	hist.latestErr = errors.New("connection refused")
	p := pendingProfile()

	res := svc.Verify(context.Background(), p, "check", false)

	require.NotNil(t, res.Risk)
	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.Equal(t, domain.CheckNoHistory, res.Risk.CheckStatus)
}

func TestVerifyArchivesEvenWhenModelFails(t *testing.T) {
	svc, hist, lc, ec := newVerificationFixture()
	lc.Err = &domain.InferenceFailure{Component: "mock", Err: errors.New("down")}
	ec.Err = errors.New("embedder down")
	p := pendingProfile()

	res := svc.Verify(context.Background(), p, "check", false)

	require.NotNil(t, res.Risk)
	assert.NotEmpty(t, res.Risk.Rationale)
	assert.Equal(t, 1, hist.count(p.ApplicantID))
	assert.Nil(t, hist.last(p.ApplicantID).Embedding)
}

func TestVerifyWithoutModelClients(t *testing.T) {
	hist := newMemHistoryStore()
	svc := NewVerificationService(hist, nil, nil, 0.2, time.Second, time.Second, time.Second, zap.NewNop())
	p := pendingProfile()
	require.NoError(t, hist.Append(context.Background(), baselineRecord(p)))

	res := svc.Verify(context.Background(), p, "check", false)

	require.NotNil(t, res.Risk)
	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.NotEmpty(t, res.Risk.Rationale)
	assert.Equal(t, 2, hist.count(p.ApplicantID))
	assert.Nil(t, hist.last(p.ApplicantID).Embedding)
}

func TestVerifyInquiryCountIncrements(t *testing.T) {
	svc, hist, _, _ := newVerificationFixture()
	p := pendingProfile()
	rec := baselineRecord(p)
	rec.InquiryCount = 4
	require.NoError(t, hist.Append(context.Background(), rec))

	svc.Verify(context.Background(), p, "check", false)

	assert.Equal(t, 5, hist.last(p.ApplicantID).InquiryCount)
}

func TestVerifyTechSupportSkipsEverything(t *testing.T) {
	svc, hist, lc, ec := newVerificationFixture()
	p := pendingProfile()

	res := svc.Verify(context.Background(), p, "the upload keeps failing", true)

	assert.Nil(t, res.Risk)
	assert.Equal(t, domain.NextContinueCollecting, res.NextStep)
	assert.NotEmpty(t, res.Response)
	assert.Equal(t, 0, hist.count(p.ApplicantID))
	assert.Empty(t, lc.Calls)
	assert.Empty(t, ec.EmbedCalls)
}

func TestVerifyModelDisagreementDoesNotChangeLevel(t *testing.T) {
	svc, hist, lc, _ := newVerificationFixture()
	lc.Responses[domain.PromptVerification] = `{"risk_level":"HIGH","check_status":"MATCHED","rationale":"model is suspicious"}`
	p := pendingProfile()
	require.NoError(t, hist.Append(context.Background(), baselineRecord(p)))

	res := svc.Verify(context.Background(), p, "check", false)

	assert.Equal(t, domain.RiskLow, res.Risk.Level)
	assert.Equal(t, "model is suspicious", res.Risk.Rationale)
	assert.Equal(t, domain.NextTransferToDecision, res.NextStep)
}
