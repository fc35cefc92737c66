package service

import (
	"context"
	"sync"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/store"
)

type memHistoryStore struct {
	mu        sync.Mutex
	records   map[string][]*domain.HistoryRecord
	latestErr error
	appendErr error
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{records: make(map[string][]*domain.HistoryRecord)}
}

func (m *memHistoryStore) Latest(ctx context.Context, applicantID string) (*domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	recs := m.records[applicantID]
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	cp := *recs[len(recs)-1]
	return &cp, nil
}

func (m *memHistoryStore) Append(ctx context.Context, rec *domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	cp := *rec
	m.records[rec.ApplicantID] = append(m.records[rec.ApplicantID], &cp)
	return nil
}

func (m *memHistoryStore) count(applicantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[applicantID])
}

func (m *memHistoryStore) last(applicantID string) *domain.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[applicantID]
	if len(recs) == 0 {
		return nil
	}
	return recs[len(recs)-1]
}

type memCaseStore struct {
	mu         sync.Mutex
	cases      []domain.CaseWithScore
	similarErr error
}

func (m *memCaseStore) Similar(ctx context.Context, embedding []float32, topK int) ([]domain.CaseWithScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.similarErr != nil {
		return nil, m.similarErr
	}
	if len(m.cases) > topK {
		return m.cases[:topK], nil
	}
	return m.cases, nil
}

func (m *memCaseStore) Add(ctx context.Context, c *domain.CaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases = append(m.cases, domain.CaseWithScore{CaseRecord: *c, Score: 1})
	return nil
}

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.ApplicantProfile
	getErr   error
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: make(map[string]*domain.ApplicantProfile)}
}

func (m *memProfileStore) Get(ctx context.Context, applicantID string) (*domain.ApplicantProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[applicantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileStore) Put(ctx context.Context, p *domain.ApplicantProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if cp.Status == "" {
		cp.Status = domain.StatusUnknown
	}
	m.profiles[p.ApplicantID] = &cp
	return nil
}

func (m *memProfileStore) UpdateStatus(ctx context.Context, applicantID string, from, to domain.VerificationStatus) (*domain.ApplicantProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[applicantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Status != from || !from.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}
	p.Status = to
	cp := *p
	return &cp, nil
}
