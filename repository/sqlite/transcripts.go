package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	apperrors "transcriptd/errors"
	"transcriptd/models"
)

type TranscriptRepository struct {
	db *sql.DB

	// Per-job locks so concurrent edit saves for the same job never
	// interleave. Lock granularity is job_id, not the whole store.
	editLocks sync.Map
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

func (r *TranscriptRepository) lockFor(jobID string) *sync.Mutex {
	lock, _ := r.editLocks.LoadOrStore(jobID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Put inserts the transcript for a job exactly once. A retrying
// completion path that already wrote gets Conflict, never a second row.
func (r *TranscriptRepository) Put(ctx context.Context, t *models.Transcript) error {
	const op = "TranscriptRepository.Put"

	if t.JobID == "" {
		return apperrors.InvalidInput(op, nil, "job ID is required")
	}
	if err := models.ValidateSegments(t.Segments); err != nil {
		return apperrors.InvalidInput(op, err, "Invalid transcript segments")
	}

	segmentsJSON, err := json.Marshal(t.Segments)
	if err != nil {
		return apperrors.Internal(op, err, "Failed to encode segments")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, insertTranscriptQuery,
		t.JobID,
		string(segmentsJSON),
		t.FullText,
		t.EditedText,
		t.Language,
		t.Duration,
		t.CreatedAt,
		t.LastEditedAt,
	)
	if err != nil {
		if isConstraintError(err) {
			return apperrors.Conflict(op, err, "Transcript already exists for this job")
		}
		return apperrors.Internal(op, errors.Wrap(err, "insert transcript"), "Failed to store transcript")
	}
	return nil
}

func (r *TranscriptRepository) Get(ctx context.Context, jobID string) (*models.Transcript, error) {
	const op = "TranscriptRepository.Get"

	t := &models.Transcript{}
	var segmentsJSON string
	var lastEditedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, getTranscriptQuery, jobID).Scan(
		&t.JobID,
		&segmentsJSON,
		&t.FullText,
		&t.EditedText,
		&t.Language,
		&t.Duration,
		&t.CreatedAt,
		&lastEditedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound(op, nil, "Transcript not found")
	}
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to query transcript")
	}

	if err := json.Unmarshal([]byte(segmentsJSON), &t.Segments); err != nil {
		return nil, apperrors.Internal(op, err, "Failed to decode segments")
	}
	if lastEditedAt.Valid {
		edited := lastEditedAt.Time
		t.LastEditedAt = &edited
	}
	return t, nil
}

// SaveEdit applies a user edit: the text always replaces the canonical
// plain-text export source; segments are replaced only when provided.
func (r *TranscriptRepository) SaveEdit(ctx context.Context, jobID, text string, segments []models.Segment) (*models.Transcript, error) {
	const op = "TranscriptRepository.SaveEdit"

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.InvalidInput(op, nil, "Edited text must not be empty")
	}
	if segments != nil {
		if err := models.ValidateSegments(segments); err != nil {
			return nil, apperrors.InvalidInput(op, err, "Invalid segments")
		}
	}

	lock := r.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if segments != nil {
		current.Segments = segments
		current.FullText = models.JoinSegments(segments)
	}
	current.EditedText = text
	now := time.Now().UTC()
	current.LastEditedAt = &now

	segmentsJSON, err := json.Marshal(current.Segments)
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to encode segments")
	}

	_, err = r.db.ExecContext(ctx, saveEditQuery,
		string(segmentsJSON),
		current.FullText,
		current.EditedText,
		now,
		jobID,
	)
	if err != nil {
		return nil, apperrors.Internal(op, err, "Failed to save edit")
	}
	return current, nil
}

func (r *TranscriptRepository) Delete(ctx context.Context, jobID string) error {
	const op = "TranscriptRepository.Delete"

	if _, err := r.db.ExecContext(ctx, deleteTranscriptQuery, jobID); err != nil {
		return apperrors.Internal(op, err, "Failed to delete transcript")
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
