package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	apperrors "transcriptd/errors"
	"transcriptd/models"
	"transcriptd/repository"
	"transcriptd/validation"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	const op = "JobRepository.Create"

	if job.ID == "" {
		return apperrors.InvalidInput(op, nil, "job ID is required")
	}
	if err := validation.ValidateJobSource(job.Kind, job.SourceURL, job.StoredFilename); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	if job.NotBefore.IsZero() {
		job.NotBefore = job.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, insertJobQuery,
		job.ID,
		string(job.Kind),
		job.SourceURL,
		job.OriginalFilename,
		job.StoredFilename,
		job.Title,
		string(job.Status),
		job.Model,
		job.Language,
		job.Error,
		job.FallbackReason,
		job.Attempts,
		job.NotBefore,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal(op, errors.Wrap(err, "insert job"), "Failed to create job")
	}
	return nil
}

func (r *JobRepository) Find(ctx context.Context, id string) (*models.Job, error) {
	const op = "JobRepository.Find"

	job, err := scanJob(r.db.QueryRowContext(ctx, getJobQuery, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(op, nil, "Job not found")
	}
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, filter repository.JobFilter) ([]*models.Job, error) {
	const op = "JobRepository.List"

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []interface{}{}

	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to list jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Internal(op, err, "Failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(op, err, "Failed to iterate jobs")
	}
	return jobs, nil
}

// Transition is the atomic conditional status update the whole state
// machine hangs off: the UPDATE only matches when the job is still in
// from, so under concurrent writers exactly one wins.
func (r *JobRepository) Transition(ctx context.Context, id string, from, to models.Status, errMsg string) (*models.Job, error) {
	const op = "JobRepository.Transition"

	if !models.CanTransition(from, to) {
		return nil, apperrors.InvalidState(op, nil,
			fmt.Sprintf("transition %s -> %s is not allowed", from, to))
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, transitionQuery,
		string(to), errMsg, now, id, string(from))
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to update job status")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to read update result")
	}
	if affected == 0 {
		// Distinguish a missing job from a lost race.
		if _, findErr := r.Find(ctx, id); apperrors.IsNotFound(findErr) {
			return nil, findErr
		}
		return nil, apperrors.InvalidState(op, nil,
			fmt.Sprintf("job is no longer %s", from))
	}

	return r.Find(ctx, id)
}

func (r *JobRepository) Claim(ctx context.Context, now time.Time) (*models.Job, error) {
	const op = "JobRepository.Claim"

	for {
		job, err := scanJob(r.db.QueryRowContext(ctx, nextClaimableQuery,
			string(models.StatusQueued), now.UTC()))
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, apperrors.Internal(op, err, "Failed to query claimable jobs")
		}

		claimed, err := r.Transition(ctx, job.ID, models.StatusQueued, models.StatusRunning, "")
		if err == nil {
			return claimed, nil
		}
		if apperrors.IsConflict(err) {
			// Another worker won the race for this row; look again.
			continue
		}
		return nil, err
	}
}

func (r *JobRepository) Requeue(ctx context.Context, id string, notBefore time.Time) error {
	const op = "JobRepository.Requeue"

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, requeueQuery,
		string(models.StatusQueued), notBefore.UTC(), now, id, string(models.StatusRunning))
	if err != nil {
		return apperrors.Internal(op, err, "Failed to requeue job")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal(op, err, "Failed to read requeue result")
	}
	if affected == 0 {
		return apperrors.InvalidState(op, nil, "job is not running")
	}
	return nil
}

func (r *JobRepository) MarkFallback(ctx context.Context, id, reason string) error {
	const op = "JobRepository.MarkFallback"

	if strings.TrimSpace(reason) == "" {
		return apperrors.InvalidInput(op, nil, "fallback reason is required")
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, markFallbackQuery,
		string(models.StatusFailed), reason, now, id, string(models.StatusRunning))
	if err != nil {
		return apperrors.Internal(op, err, "Failed to mark job fallback")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal(op, err, "Failed to read fallback result")
	}
	if affected == 0 {
		return apperrors.InvalidState(op, nil, "job is not running")
	}
	return nil
}

// SetTitle records video metadata discovered during processing. Not a
// status write, so updated_at is left alone.
func (r *JobRepository) SetTitle(ctx context.Context, id, title string) error {
	const op = "JobRepository.SetTitle"

	if _, err := r.db.ExecContext(ctx, setTitleQuery, title, id); err != nil {
		return apperrors.Internal(op, err, "Failed to set job title")
	}
	return nil
}

func (r *JobRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	const op = "JobRepository.FindStale"

	rows, err := r.db.QueryContext(ctx, staleJobsQuery,
		string(models.StatusRunning), cutoff.UTC())
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to query stale jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Internal(op, err, "Failed to scan stale job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal(op, err, "Failed to iterate stale jobs")
	}
	return jobs, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	const op = "JobRepository.Delete"

	return WithTransaction(ctx, r.db, func(tx Executor) error {
		job, err := scanJob(tx.QueryRowContext(ctx, getJobQuery, id))
		if err == sql.ErrNoRows {
			return apperrors.NotFound(op, nil, "Job not found")
		}
		if err != nil {
			return apperrors.Internal(op, err, "Failed to query job")
		}

		if job.Status == models.StatusRunning {
			return apperrors.InvalidState(op, nil, "Cannot delete a running job")
		}

		// Transcript rows cascade via the foreign key.
		if _, err := tx.ExecContext(ctx, deleteJobQuery, id); err != nil {
			return apperrors.Internal(op, err, "Failed to delete job")
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var kind, status string

	err := row.Scan(
		&job.ID,
		&kind,
		&job.SourceURL,
		&job.OriginalFilename,
		&job.StoredFilename,
		&job.Title,
		&status,
		&job.Model,
		&job.Language,
		&job.Error,
		&job.FallbackReason,
		&job.Attempts,
		&job.NotBefore,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = models.SourceKind(kind)
	job.Status = models.Status(status)
	return job, nil
}
