package domain

import "testing"

func TestVerificationStatusTransitions(t *testing.T) {
	allowed := map[VerificationStatus][]VerificationStatus{
		StatusUnknown:  {StatusPending},
		StatusPending:  {StatusVerified, StatusMismatch},
		StatusVerified: {StatusPending},
		StatusMismatch: {StatusPending},
	}
	all := []VerificationStatus{StatusUnknown, StatusPending, StatusVerified, StatusMismatch}

	for from, targets := range allowed {
		ok := map[VerificationStatus]bool{}
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			got := from.CanTransitionTo(to)
			if got != ok[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestVerificationStatusNeverSkipsBackward(t *testing.T) {
	// pending can never jump straight to a decision-ready state without a
	// verification outcome, and verified never regresses to unknown.
	if StatusUnknown.CanTransitionTo(StatusVerified) {
		t.Error("unknown must not skip to verified")
	}
	if StatusUnknown.CanTransitionTo(StatusMismatch) {
		t.Error("unknown must not skip to mismatch")
	}
	if StatusVerified.CanTransitionTo(StatusUnknown) {
		t.Error("verified must not regress to unknown")
	}
	if StatusMismatch.CanTransitionTo(StatusVerified) {
		t.Error("mismatch must re-enter verification via pending")
	}
}

func TestOutcomeTighten(t *testing.T) {
	cases := []struct {
		from, to, want Outcome
	}{
		{OutcomeApprove, OutcomeReject, OutcomeReject},
		{OutcomeApprove, OutcomeEscalate, OutcomeEscalate},
		{OutcomeEscalate, OutcomeReject, OutcomeReject},
		{OutcomeReject, OutcomeApprove, OutcomeReject},
		{OutcomeReject, OutcomeEscalate, OutcomeReject},
		{OutcomeEscalate, OutcomeApprove, OutcomeEscalate},
		{OutcomeReject, OutcomeReject, OutcomeReject},
	}
	for _, c := range cases {
		if got := c.from.Tighten(c.to); got != c.want {
			t.Errorf("Tighten(%s, %s) = %s, want %s", c.from, c.to, got, c.want)
		}
	}
}

func TestProfileCompleteness(t *testing.T) {
	p := &ApplicantProfile{}
	if p.Completeness() != 0 {
		t.Errorf("empty profile completeness = %v, want 0", p.Completeness())
	}

	p = &ApplicantProfile{
		Name:       "Chen Wei",
		NationalID: "A123456789",
		Job:        "engineer",
		Income:     80000,
		Purpose:    "car",
		Amount:     500000,
	}
	if p.Completeness() != 1 {
		t.Errorf("full profile completeness = %v, want 1", p.Completeness())
	}
	if missing := p.MissingIdentityFields(); len(missing) != 0 {
		t.Errorf("unexpected missing identity fields: %v", missing)
	}

	p.NationalID = ""
	if missing := p.MissingIdentityFields(); len(missing) != 1 || missing[0] != "national_id" {
		t.Errorf("missing = %v, want [national_id]", p.MissingIdentityFields())
	}
}
