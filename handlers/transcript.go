package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apperrors "transcriptd/errors"
	"transcriptd/export"
	"transcriptd/models"
)

type transcriptResponse struct {
	JobID        string           `json:"job_id"`
	Segments     []models.Segment `json:"segments"`
	FullText     string           `json:"full_text"`
	EditedText   string           `json:"edited_text,omitempty"`
	Text         string           `json:"text"`
	Language     string           `json:"language"`
	Duration     float64          `json:"duration"`
	Edited       bool             `json:"edited"`
	CreatedAt    string           `json:"created_at"`
	LastEditedAt string           `json:"last_edited_at,omitempty"`
}

func toTranscriptResponse(t *models.Transcript) transcriptResponse {
	resp := transcriptResponse{
		JobID:      t.JobID,
		Segments:   t.Segments,
		FullText:   t.FullText,
		EditedText: t.EditedText,
		Text:       t.ExportText(),
		Language:   t.Language,
		Duration:   t.Duration,
		Edited:     t.Edited(),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
	if t.LastEditedAt != nil {
		resp.LastEditedAt = t.LastEditedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := h.loadTranscript(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTranscriptResponse(t))
}

// loadTranscript reads the local transcript row, falling back to the
// archive when the row is missing. A restored copy is written back so
// the next read is local again.
func (h *Handler) loadTranscript(ctx context.Context, jobID string) (*models.Transcript, error) {
	t, err := h.transcripts.Get(ctx, jobID)
	if err == nil || h.archive == nil || !apperrors.IsNotFound(err) {
		return t, err
	}

	restored, archiveErr := h.archive.GetTranscript(ctx, jobID)
	if archiveErr != nil {
		h.logger.WithError(archiveErr).WithField("job_id", jobID).
			Debug("No archived transcript to restore")
		return nil, err
	}
	if putErr := h.transcripts.Put(ctx, restored); putErr != nil && !apperrors.IsConflict(putErr) {
		h.logger.WithError(putErr).WithField("job_id", jobID).
			Warn("Failed to re-persist restored transcript")
	}
	h.logger.WithField("job_id", jobID).Info("Transcript restored from archive")
	return restored, nil
}

type editRequest struct {
	Text     string           `json:"text"`
	Segments []models.Segment `json:"segments,omitempty"`
}

// UpdateTranscript applies a user edit. Only done jobs can be edited;
// editing a transcript mid-retry would race the worker.
func (h *Handler) UpdateTranscript(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.UpdateTranscript"
	id := r.PathValue("id")

	job, err := h.jobs.Find(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if job.Status != models.StatusDone {
		respondError(w, r, apperrors.InvalidState(op, nil,
			fmt.Sprintf("Cannot edit the transcript of a %s job", job.ReportedStatus())))
		return
	}

	var req editRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	t, err := h.transcripts.SaveEdit(r.Context(), id, req.Text, req.Segments)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTranscriptResponse(t))
}

// ExportTranscript streams the transcript as a download in the
// requested format.
func (h *Handler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ExportTranscript"
	id := r.PathValue("id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}
	kind, err := export.ParseKind(format)
	if err != nil {
		respondError(w, r, apperrors.InvalidInput(op, err,
			"Format must be one of txt, srt, vtt, json"))
		return
	}

	t, err := h.loadTranscript(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	body, err := export.Format(t, kind)
	if err != nil {
		respondError(w, r, apperrors.Internal(op, err, "Failed to format transcript"))
		return
	}

	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", kind.Filename()))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
