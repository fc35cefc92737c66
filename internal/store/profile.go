package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProfileStore keeps applicant sessions in Redis with a TTL. The dialogue
// collaborator owns the profile lifecycle; the core reads it and moves the
// verification status through its state machine.
type ProfileStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProfileStore(rdb *redis.Client, ttl time.Duration) *ProfileStore {
	return &ProfileStore{rdb: rdb, ttl: ttl}
}

func profileKey(applicantID string) string {
	return "profile:" + applicantID
}

func (s *ProfileStore) Get(ctx context.Context, applicantID string) (*domain.ApplicantProfile, error) {
	raw, err := s.rdb.Get(ctx, profileKey(applicantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var p domain.ApplicantProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileStore) Put(ctx context.Context, p *domain.ApplicantProfile) error {
	if p.ApplicantID == "" {
		return &domain.ValidationError{Field: "applicant_id", Msg: "is required"}
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = domain.StatusUnknown
	}

	buf, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.rdb.Set(ctx, profileKey(p.ApplicantID), buf, s.ttl).Err(); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// UpdateStatus transitions the stored status with an optimistic
// check-and-set. If the stored status no longer matches from (another
// message from the same applicant got there first) or the transition is
// not in the lifecycle table, it fails with ErrInvalidTransition.
func (s *ProfileStore) UpdateStatus(ctx context.Context, applicantID string, from, to domain.VerificationStatus) (*domain.ApplicantProfile, error) {
	key := profileKey(applicantID)
	var updated *domain.ApplicantProfile

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		var p domain.ApplicantProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}

		if p.Status != from || !from.CanTransitionTo(to) {
			return domain.ErrInvalidTransition
		}

		p.Status = to
		p.UpdatedAt = time.Now().UTC()

		buf, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &p
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}
