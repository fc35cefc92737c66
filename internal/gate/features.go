package gate

import (
	"strings"

	"github.com/finloop/loandesk/internal/domain"
)

// Keyword tables for the heuristic risk score. Matching is lowercase
// substring, same as the scoring pipeline the model was calibrated against.
var (
	highRiskJobs = []string{
		"freelance", "unemployed", "between jobs", "temp worker", "day labor",
		"street vendor", "homemaker", "student", "part-time",
	}
	lowRiskJobs = []string{
		"civil servant", "teacher", "doctor", "physician", "lawyer",
		"accountant", "engineer", "supervisor", "manager", "finance", "tech",
	}
	lowRiskPurposes = []string{
		"home", "house", "down payment", "education", "medical", "startup",
	}
	highRiskPurposes = []string{
		"investment", "debt consolidation", "working capital", "other",
	}
)

// HighRiskJob reports whether the declared occupation matches the
// unstable-employment keyword table.
func HighRiskJob(job string) bool {
	return containsAny(strings.ToLower(job), highRiskJobs)
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// RiskScore is the cheap heuristic over the declared profile, in [0,1].
// Weighted blend of job stability (40%), income level (30%), loan purpose
// (20%) and a rough debt-to-income ratio assuming a five year term (10%).
// Unknown dimensions score neutral 0.5.
func RiskScore(p *domain.ApplicantProfile) float64 {
	job := strings.ToLower(p.Job)
	purpose := strings.ToLower(p.Purpose)

	jobRisk := 0.5
	if containsAny(job, highRiskJobs) {
		jobRisk = 0.9
	}
	if containsAny(job, lowRiskJobs) {
		jobRisk = 0.1
	}

	incomeRisk := 0.5
	if p.Income > 0 {
		switch {
		case p.Income < 30000:
			incomeRisk = 0.9
		case p.Income < 50000:
			incomeRisk = 0.6
		case p.Income < 70000:
			incomeRisk = 0.4
		case p.Income < 100000:
			incomeRisk = 0.2
		default:
			incomeRisk = 0.1
		}
	}

	purposeRisk := 0.5
	if containsAny(purpose, lowRiskPurposes) {
		purposeRisk = 0.2
	}
	if containsAny(purpose, highRiskPurposes) {
		purposeRisk = 0.7
	}

	dtiRisk := 0.5
	if p.Income > 0 && p.Amount > 0 {
		monthly := float64(p.Amount) / 60
		dti := monthly / float64(p.Income)
		switch {
		case dti > 0.5:
			dtiRisk = 1.0
		case dti > 0.4:
			dtiRisk = 0.8
		case dti > 0.3:
			dtiRisk = 0.6
		case dti > 0.2:
			dtiRisk = 0.3
		default:
			dtiRisk = 0.1
		}
	}

	return jobRisk*0.4 + incomeRisk*0.3 + purposeRisk*0.2 + dtiRisk*0.1
}

// StructDim is the width of the structured feature vector the gating model
// was trained with.
const StructDim = 7

// StructFeatures assembles the structured input stream: field-presence
// flags, the normalized status ordinal, the completeness ratio and the
// heuristic risk score.
func StructFeatures(p *domain.ApplicantProfile, risk float64) []float64 {
	b2f := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	return []float64{
		b2f(p.NationalID != ""),
		b2f(p.Name != ""),
		b2f(p.Job != ""),
		b2f(p.Income > 0),
		float64(p.Status.Index()) / 4.0,
		p.Completeness(),
		risk,
	}
}
