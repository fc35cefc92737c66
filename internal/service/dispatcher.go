package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/gate"
	"github.com/finloop/loandesk/internal/store"
)

// Dispatcher orchestrates one logical turn: route, invoke the selected
// stage, drive the verification lifecycle, and auto-forward to the
// decision stage when verification clears. Turns for the same applicant
// serialize on a keyed lock; turns for different applicants run freely in
// parallel.
type Dispatcher struct {
	profiles     domain.ProfileStore
	router       *gate.Router
	verification *VerificationService
	decision     *DecisionService
	clarify      *ClarificationService
	logger       *zap.Logger
	storeTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*applicantLock
}

type applicantLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(
	profiles domain.ProfileStore,
	router *gate.Router,
	verification *VerificationService,
	decision *DecisionService,
	clarify *ClarificationService,
	storeTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		profiles:     profiles,
		router:       router,
		verification: verification,
		decision:     decision,
		clarify:      clarify,
		storeTimeout: storeTimeout,
		logger:       logger,
		locks:        make(map[string]*applicantLock),
	}
}

func (d *Dispatcher) lock(applicantID string) func() {
	d.mu.Lock()
	l, ok := d.locks[applicantID]
	if !ok {
		l = &applicantLock{}
		d.locks[applicantID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, applicantID)
		}
		d.mu.Unlock()
	}
}

// HandleTurn processes one turn end to end. The only error it returns is a
// *domain.ValidationError for an unusable request; every stage-level
// failure is absorbed into the structured result.
func (d *Dispatcher) HandleTurn(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResult, error) {
	if req.ApplicantID == "" {
		return nil, &domain.ValidationError{Field: "applicant_id", Msg: "is required"}
	}
	if req.Query == "" {
		return nil, &domain.ValidationError{Field: "query", Msg: "is required"}
	}

	unlock := d.lock(req.ApplicantID)
	defer unlock()

	profile := d.loadProfile(ctx, req.ApplicantID)

	routing := d.router.Route(ctx, profile, req.Query, req.History)

	var result *StageResult
	status := profile.Status

	switch routing.Stage {
	case domain.StageVerification:
		result = d.verification.Verify(ctx, profile, req.Query, routing.TechSupport)
		status = d.afterVerification(ctx, profile, result)

	case domain.StageDecision:
		result = d.decision.Decide(ctx, profile, nil)

	default:
		result = d.clarify.Clarify(ctx, profile, req.Query)
	}

	return &domain.TurnResult{
		TurnID:   uuid.New(),
		Routing:  *routing,
		Response: result.Response,
		NextStep: result.NextStep,
		Status:   status,
		Risk:     result.Risk,
		Decision: result.Decision,
	}, nil
}

// afterVerification drives the lifecycle off the risk report and performs
// the same-turn auto-forward. LOW and MEDIUM clear verification and hand
// the report straight to the decision stage; HIGH marks the profile
// mismatched and forces clarification on the next turn.
func (d *Dispatcher) afterVerification(ctx context.Context, profile *domain.ApplicantProfile, result *StageResult) domain.VerificationStatus {
	if result.Risk == nil {
		// tech-support sub-mode, lifecycle untouched
		return profile.Status
	}
	if profile.Status != domain.StatusPending {
		// nothing transferred, so don't advertise a transfer
		result.NextStep = domain.NextContinueCollecting
		return profile.Status
	}

	if result.Risk.Level == domain.RiskHigh {
		updated, err := d.transition(ctx, profile.ApplicantID, domain.StatusPending, domain.StatusMismatch)
		if err != nil {
			d.logger.Error("status transition failed",
				zap.String("applicant_id", profile.ApplicantID),
				zap.Error(err))
			result.NextStep = domain.NextContinueCollecting
			return profile.Status
		}
		return updated.Status
	}

	updated, err := d.transition(ctx, profile.ApplicantID, domain.StatusPending, domain.StatusVerified)
	if err != nil {
		d.logger.Error("status transition failed, skipping auto-forward",
			zap.String("applicant_id", profile.ApplicantID),
			zap.Error(err))
		result.NextStep = domain.NextContinueCollecting
		return profile.Status
	}

	d.logger.Info("auto-forwarding to decision stage",
		zap.String("applicant_id", profile.ApplicantID),
		zap.String("risk_level", string(result.Risk.Level)))

	decided := d.decision.Decide(ctx, updated, result.Risk)
	result.Response = result.Response + "\n" + decided.Response
	result.NextStep = decided.NextStep
	result.Decision = decided.Decision
	return updated.Status
}

// loadProfile degrades to an empty unknown-status profile when the session
// store has no record or is unreachable; the guardrails then route the
// turn to clarification.
func (d *Dispatcher) loadProfile(ctx context.Context, applicantID string) *domain.ApplicantProfile {
	loadCtx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()

	p, err := d.profiles.Get(loadCtx, applicantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("profile load degraded to empty profile",
				zap.String("applicant_id", applicantID),
				zap.Error(&domain.LookupFailure{Op: "profiles.get", Err: err}))
		}
		return &domain.ApplicantProfile{
			ApplicantID: applicantID,
			Status:      domain.StatusUnknown,
		}
	}
	return p
}

func (d *Dispatcher) transition(ctx context.Context, applicantID string, from, to domain.VerificationStatus) (*domain.ApplicantProfile, error) {
	storeCtx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	return d.profiles.UpdateStatus(storeCtx, applicantID, from, to)
}

// CompleteCollection is the external dialogue-collection-complete event:
// it moves the applicant from unknown to pending so the next turn can
// route to verification.
func (d *Dispatcher) CompleteCollection(ctx context.Context, applicantID string) (*domain.ApplicantProfile, error) {
	unlock := d.lock(applicantID)
	defer unlock()
	return d.transition(ctx, applicantID, domain.StatusUnknown, domain.StatusPending)
}

// ResolveMismatch re-enters the lifecycle after a clarified discrepancy:
// mismatch goes back to pending and verification runs again next turn.
func (d *Dispatcher) ResolveMismatch(ctx context.Context, applicantID string) (*domain.ApplicantProfile, error) {
	unlock := d.lock(applicantID)
	defer unlock()
	return d.transition(ctx, applicantID, domain.StatusMismatch, domain.StatusPending)
}
