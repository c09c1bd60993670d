package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// JobHistoryRepository tracks background job runs.
type JobHistoryRepository struct {
	db *sqlx.DB
}

// NewJobHistoryRepository constructs the repository.
func NewJobHistoryRepository(db *sqlx.DB) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// JobStarted opens a run and returns its id.
func (r *JobHistoryRepository) JobStarted(ctx context.Context, jobKey string) (int, error) {
	const query = `INSERT INTO job_history (job_key, failed, started_at) VALUES ($1, FALSE, NOW()) RETURNING id`
	var id int
	if err := r.db.QueryRowxContext(ctx, query, jobKey).Scan(&id); err != nil {
		return 0, fmt.Errorf("job %s started: %w", jobKey, err)
	}
	return id, nil
}

// JobFinished closes a run.
func (r *JobHistoryRepository) JobFinished(ctx context.Context, id int, failed bool) error {
	const query = `UPDATE job_history SET failed = $2, finished_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, failed); err != nil {
		return fmt.Errorf("job run %d finished: %w", id, err)
	}
	return nil
}

// ListSince returns runs started after since, newest first.
func (r *JobHistoryRepository) ListSince(ctx context.Context, since time.Time) ([]models.JobHistory, error) {
	const query = `SELECT id, job_key, failed, started_at, finished_at FROM job_history WHERE started_at >= $1 ORDER BY started_at DESC`
	var rows []models.JobHistory
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}
	return rows, nil
}

// LastRun returns the latest run of a job or sql.ErrNoRows.
func (r *JobHistoryRepository) LastRun(ctx context.Context, jobKey string) (*models.JobHistory, error) {
	const query = `SELECT id, job_key, failed, started_at, finished_at FROM job_history WHERE job_key = $1 ORDER BY started_at DESC LIMIT 1`
	var row models.JobHistory
	if err := r.db.GetContext(ctx, &row, query, jobKey); err != nil {
		return nil, err
	}
	return &row, nil
}
