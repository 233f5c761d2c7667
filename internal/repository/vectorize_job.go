package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

var ErrVectorizeJobNotFound = errors.New("vectorize job not found")

type VectorizeJobRepository struct {
	db dbtx
}

func NewVectorizeJobRepository(pool *pgxpool.Pool) *VectorizeJobRepository {
	return &VectorizeJobRepository{db: pool}
}

func NewVectorizeJobRepositoryWithTx(tx pgx.Tx) *VectorizeJobRepository {
	return &VectorizeJobRepository{db: tx}
}

func (r *VectorizeJobRepository) Create(ctx context.Context, job *domain.VectorizeJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO vectorize_jobs (id, knowledge_item_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.KnowledgeItemID, job.Status, job.Retries, nullableText(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *VectorizeJobRepository) GetByID(ctx context.Context, id string) (*domain.VectorizeJob, error) {
	var job domain.VectorizeJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, knowledge_item_id, status, retries, error, created_at, processed_at
		 FROM vectorize_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.KnowledgeItemID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVectorizeJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// ClaimPending atomically moves up to limit pending jobs into processing.
// SKIP LOCKED keeps concurrent workers from claiming the same job twice.
func (r *VectorizeJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.VectorizeJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM vectorize_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE vectorize_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE vectorize_jobs.id = cte.id
		 RETURNING vectorize_jobs.id, vectorize_jobs.knowledge_item_id, vectorize_jobs.status,
		           vectorize_jobs.retries, vectorize_jobs.error, vectorize_jobs.created_at, vectorize_jobs.processed_at`,
		domain.VectorizeJobStatusPending, limit, domain.VectorizeJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.VectorizeJob
	for rows.Next() {
		var job domain.VectorizeJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.KnowledgeItemID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *VectorizeJobRepository) UpdateStatus(ctx context.Context, id string, status domain.VectorizeJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.VectorizeJobStatusCompleted || status == domain.VectorizeJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE vectorize_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableText(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVectorizeJobNotFound
	}
	return nil
}

func (r *VectorizeJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE vectorize_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVectorizeJobNotFound
	}
	return nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
