package store

import (
	"context"
	"fmt"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// CaseStore holds closed applications for advisory similar-case lookup.
type CaseStore struct {
	db *pgxpool.Pool
}

func NewCaseStore(db *pgxpool.Pool) *CaseStore {
	return &CaseStore{db: db}
}

// Similar returns the topK closest cases by cosine distance.
func (s *CaseStore) Similar(ctx context.Context, embedding []float32, topK int) ([]domain.CaseWithScore, error) {
	if topK <= 0 {
		topK = 3
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, content, job, income, amount, approved_amount, purpose, outcome, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM case_library
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similar cases query: %w", err)
	}
	defer rows.Close()

	var results []domain.CaseWithScore
	for rows.Next() {
		var c domain.CaseWithScore
		if err := rows.Scan(&c.ID, &c.Content, &c.Job, &c.Income, &c.Amount, &c.ApprovedAmount, &c.Purpose, &c.Outcome, &c.CreatedAt, &c.Score); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Add inserts a case into the library. Used by seeding and by case closure.
func (s *CaseStore) Add(ctx context.Context, c *domain.CaseRecord) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO case_library (content, job, income, amount, approved_amount, purpose, outcome, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at`,
			c.Content, c.Job, c.Income, c.Amount, c.ApprovedAmount, c.Purpose, c.Outcome, embedding,
		).Scan(&c.ID, &c.CreatedAt)
	})
}
