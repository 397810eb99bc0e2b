package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wanvideo/generation-be/internal/api/model"
	"github.com/wanvideo/generation-be/shared/postgresql"
)

// ErrJobNotFound is returned when a job_id matches no row.
var ErrJobNotFound = sql.ErrNoRows

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob persists a new PENDING job row. Status and timestamps are set
// by the query, not the caller.
func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO generation_jobs (
			job_id, user_id, mode, payload,
			status, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			'PENDING', $5, NOW(), NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.Mode,
		job.Payload,
		job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, user_id, mode, payload, status,
			result, error_message, max_retries, created_at, updated_at
		FROM generation_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	UserID   string
	Mode     string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 rows so the caller can detect whether
// a next page exists. Cursor pagination is keyed on (created_at, job_id).
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
		SELECT
			job_id, user_id, mode, payload, status,
			result, error_message, max_retries, created_at, updated_at
		FROM generation_jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Mode != "" {
		query += fmt.Sprintf(" AND mode = $%d", argIdx)
		args = append(args, filter.Mode)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, job_id DESC LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CancelJob flips a PENDING job to CANCELED. Jobs already picked up by a
// worker are left alone; there is no mid-flight cancellation path.
func (s *Storage) CancelJob(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE generation_jobs
		SET status = 'CANCELED', updated_at = NOW()
		WHERE job_id = $1 AND status = 'PENDING'
	`

	result, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
