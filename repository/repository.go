package repository

import (
	"context"
	"time"

	"transcriptd/models"
)

// JobFilter narrows List results.
type JobFilter struct {
	Status models.Status
	Limit  int
	Offset int
}

// JobRepository is the single source of truth for job state. All
// mutations are atomic with respect to concurrent readers, and every
// status write updates updated_at transactionally.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Find(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*models.Job, error)

	// Transition conditionally moves a job from one status to another.
	// It fails with InvalidState if the job is no longer in from,
	// which is what makes claims exclusive under concurrency.
	Transition(ctx context.Context, id string, from, to models.Status, errMsg string) (*models.Job, error)

	// Claim picks the oldest eligible queued job and flips it to
	// running. Returns (nil, nil) when nothing is claimable.
	Claim(ctx context.Context, now time.Time) (*models.Job, error)

	// Requeue returns a running job to the queue with its attempt
	// counter incremented and a backoff floor on the next claim.
	Requeue(ctx context.Context, id string, notBefore time.Time) error

	// MarkFallback terminates a running job as a non-error fallback
	// outcome (stored failed + fallback_reason, reported distinctly).
	MarkFallback(ctx context.Context, id, reason string) error

	// SetTitle records metadata discovered during processing without
	// touching updated_at.
	SetTitle(ctx context.Context, id, title string) error

	// FindStale returns running jobs whose updated_at predates cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error)

	// Delete removes a job and cascades its transcript. Rejected with
	// InvalidState while the job is running.
	Delete(ctx context.Context, id string) error
}

// TranscriptRepository stores the artifact produced for a job.
type TranscriptRepository interface {
	// Put inserts the transcript exactly once; a second write for the
	// same job fails with Conflict.
	Put(ctx context.Context, t *models.Transcript) error
	Get(ctx context.Context, jobID string) (*models.Transcript, error)

	// SaveEdit applies a user edit. Last write wins; concurrent saves
	// for the same job are serialized.
	SaveEdit(ctx context.Context, jobID, text string, segments []models.Segment) (*models.Transcript, error)
	Delete(ctx context.Context, jobID string) error
}
