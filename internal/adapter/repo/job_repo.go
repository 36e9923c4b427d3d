package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scenestudio/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, mode, status, model_id, provider, payload_json, result_json, quantity, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Mode,
		job.Status,
		job.ModelID,
		job.Provider,
		job.PayloadJSON,
		nullableBytes(job.ResultJSON),
		job.Quantity,
		job.ErrorMessage,
	)
	return err
}

// UpdateStatus updates job status and optionally error/result payloads.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultJSON []byte) error {
	query := `
UPDATE jobs
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    result_json = COALESCE($4, result_json)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, status, errMsg, nullableBytes(resultJSON))
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, owner_id, mode, status, model_id, provider, payload_json, result_json, quantity, error_message, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByIDs fetches all jobs from the given id set. Missing ids are simply
// absent from the result.
func (r *JobRepositoryPG) ListByIDs(ctx context.Context, jobIDs []string) ([]domain.Job, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	query := `
SELECT id, owner_id, mode, status, model_id, provider, payload_json, result_json, quantity, error_message, created_at, updated_at
FROM jobs
WHERE id = ANY($1);
`
	rows, err := r.pool.Query(ctx, query, jobIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ListStuck returns non-terminal jobs created before the cutoff. The sweep
// uses it to fail jobs the worker never finished.
func (r *JobRepositoryPG) ListStuck(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := `
SELECT id, owner_id, mode, status, model_id, provider, payload_json, result_json, quantity, error_message, created_at, updated_at
FROM jobs
WHERE status IN ('queued', 'processing')
  AND created_at < $1;
`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Mode,
		&job.Status,
		&job.ModelID,
		&job.Provider,
		&job.PayloadJSON,
		&job.ResultJSON,
		&job.Quantity,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
