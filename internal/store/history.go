package store

import (
	"context"
	"errors"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// HistoryStore persists the append-only verification history in Postgres.
type HistoryStore struct {
	db *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{db: db}
}

// Latest returns the most recent record for the applicant, or ErrNotFound.
func (s *HistoryStore) Latest(ctx context.Context, applicantID string) (*domain.HistoryRecord, error) {
	rec := &domain.HistoryRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, applicant_id, name, job, employer, phone, purpose, income, default_flag, inquiry_count, risk_level, check_status, content, created_at
		 FROM applicant_history
		 WHERE applicant_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		applicantID,
	).Scan(&rec.ID, &rec.ApplicantID, &rec.Name, &rec.Job, &rec.Employer, &rec.Phone, &rec.Purpose, &rec.Income, &rec.DefaultFlag, &rec.InquiryCount, &rec.RiskLevel, &rec.CheckStatus, &rec.Content, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Append writes a new history row. Rows are never updated or deleted; the
// next verification turn reads this one as its baseline. Transient errors
// are retried with bounded backoff.
func (s *HistoryStore) Append(ctx context.Context, rec *domain.HistoryRecord) error {
	var embedding *pgvector.Vector
	if len(rec.Embedding) > 0 {
		v := pgvector.NewVector(rec.Embedding)
		embedding = &v
	}

	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO applicant_history (applicant_id, name, job, employer, phone, purpose, income, default_flag, inquiry_count, risk_level, check_status, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING id, created_at`,
			rec.ApplicantID, rec.Name, rec.Job, rec.Employer, rec.Phone, rec.Purpose, rec.Income, rec.DefaultFlag, rec.InquiryCount, rec.RiskLevel, rec.CheckStatus, rec.Content, embedding,
		).Scan(&rec.ID, &rec.CreatedAt)
	})
}
