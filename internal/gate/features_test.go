package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finloop/loandesk/internal/domain"
)

func TestRiskScoreNeutralWhenUnknown(t *testing.T) {
	p := &domain.ApplicantProfile{ApplicantID: "a1"}
	assert.InDelta(t, 0.5, RiskScore(p), 1e-9)
}

func TestRiskScoreLowProfile(t *testing.T) {
	p := &domain.ApplicantProfile{
		ApplicantID: "a1",
		Job:         "Software Engineer",
		Income:      80000,
		Purpose:     "home purchase",
		Amount:      600000,
	}
	// job 0.1*0.4 + income 0.2*0.3 + purpose 0.2*0.2 + dti 0.1*0.1
	assert.InDelta(t, 0.15, RiskScore(p), 1e-9)
}

func TestRiskScoreHighProfile(t *testing.T) {
	p := &domain.ApplicantProfile{
		ApplicantID: "a1",
		Job:         "unemployed",
		Income:      20000,
		Purpose:     "investment",
		Amount:      1200000,
	}
	// job 0.9*0.4 + income 0.9*0.3 + purpose 0.7*0.2 + dti 1.0*0.1
	assert.InDelta(t, 0.87, RiskScore(p), 1e-9)
}

func TestStructFeatures(t *testing.T) {
	p := &domain.ApplicantProfile{
		ApplicantID: "a1",
		Name:        "Lin Wei",
		NationalID:  "A123456789",
		Job:         "teacher",
		Income:      55000,
		Status:      domain.StatusPending,
	}
	feats := StructFeatures(p, 0.42)

	assert.Len(t, feats, StructDim)
	assert.Equal(t, 1.0, feats[0]) // national id present
	assert.Equal(t, 1.0, feats[1]) // name present
	assert.Equal(t, 1.0, feats[2]) // job present
	assert.Equal(t, 1.0, feats[3]) // income present
	assert.InDelta(t, 0.25, feats[4], 1e-9)
	assert.InDelta(t, 4.0/6.0, feats[5], 1e-9)
	assert.InDelta(t, 0.42, feats[6], 1e-9)
}
