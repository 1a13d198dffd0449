package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "transcriptd/errors"
	"transcriptd/models"
	"transcriptd/repository"
	"transcriptd/validation"
)

// jobResponse is the wire shape for a job. Status carries the
// reported value, so fallback terminations are distinguishable from
// failures without exposing the storage encoding.
type jobResponse struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	SourceURL        string `json:"source_url,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Title            string `json:"title,omitempty"`
	Status           string `json:"status"`
	Model            string `json:"model"`
	Language         string `json:"language,omitempty"`
	Error            string `json:"error,omitempty"`
	FallbackReason   string `json:"fallback_reason,omitempty"`
	Attempts         int    `json:"attempts"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func toJobResponse(job *models.Job) jobResponse {
	return jobResponse{
		ID:               job.ID,
		Kind:             string(job.Kind),
		SourceURL:        job.SourceURL,
		OriginalFilename: job.OriginalFilename,
		Title:            job.Title,
		Status:           job.ReportedStatus(),
		Model:            job.Model,
		Language:         job.Language,
		Error:            job.Error,
		FallbackReason:   job.FallbackReason,
		Attempts:         job.Attempts,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateUploadJob accepts a multipart media upload and queues a
// transcription job for it.
func (h *Handler) CreateUploadJob(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.CreateUploadJob"

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, apperrors.InvalidInput(op, err, "Invalid multipart request"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, apperrors.InvalidInput(op, err, "Missing file field"))
		return
	}
	defer file.Close()

	if err := h.validator.ValidateUpload(header.Filename, header.Size); err != nil {
		respondError(w, r, err)
		return
	}

	model, language, err := h.modelAndLanguage(r.FormValue("model"), r.FormValue("language"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	job := &models.Job{
		ID:               uuid.New().String(),
		Kind:             models.SourceFileUpload,
		OriginalFilename: header.Filename,
		StoredFilename:   validation.SafeStoredFilename(header.Filename),
		Model:            model,
		Language:         language,
	}

	if _, err := h.media.SaveUpload(job.ID, job.StoredFilename, file); err != nil {
		respondError(w, r, apperrors.Internal(op, err, "Failed to store upload"))
		return
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		// No orphaned files for jobs that never existed.
		h.media.RemoveJobFiles(job.ID)
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, toJobResponse(job))
}

type youtubeJobRequest struct {
	URL      string `json:"url"`
	Mode     string `json:"mode"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// CreateYouTubeJob queues a job for a YouTube URL. Mode "safe" (the
// default) only uses creator captions; "auto" downloads audio for
// local transcription and needs the opt-in flag.
func (h *Handler) CreateYouTubeJob(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.CreateYouTubeJob"

	var req youtubeJobRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := h.validator.ValidateYouTubeURL(req.URL); err != nil {
		respondError(w, r, err)
		return
	}

	var kind models.SourceKind
	switch req.Mode {
	case "", "safe":
		kind = models.SourceYouTubeCaptions
	case "auto":
		if !h.cfg.YouTube.AutoIngestEnabled {
			respondError(w, r, apperrors.InvalidInput(op, nil,
				"Auto ingest mode is not enabled on this server"))
			return
		}
		kind = models.SourceYouTubeAutoIngest
	default:
		respondError(w, r, apperrors.InvalidInput(op, nil, "Mode must be \"safe\" or \"auto\""))
		return
	}

	model, language, err := h.modelAndLanguage(req.Model, req.Language)
	if err != nil {
		respondError(w, r, err)
		return
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		SourceURL: req.URL,
		Model:     model,
		Language:  language,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, toJobResponse(job))
}

func (h *Handler) modelAndLanguage(model, language string) (string, string, error) {
	const op = "Handler.modelAndLanguage"

	if model == "" {
		model = h.cfg.Scripts.DefaultModel
	}
	if !models.ValidModelSize(model) {
		return "", "", apperrors.InvalidInput(op, nil,
			"Model must be one of tiny, base, small, medium, large")
	}
	return model, language, nil
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ListJobs"

	filter := repositoryFilter(r)
	if filter.Status != "" {
		switch filter.Status {
		case models.StatusQueued, models.StatusRunning, models.StatusDone, models.StatusFailed:
		default:
			respondError(w, r, apperrors.InvalidInput(op, nil, "Unknown status filter"))
			return
		}
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": responses})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toJobResponse(job))
}

// DeleteJob removes a job, its transcript (via cascade), and its
// files. Running jobs are rejected; the worker owns them.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.jobs.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	// File cleanup is best effort after the record is gone.
	if err := h.media.RemoveJobFiles(id); err != nil {
		h.logger.WithError(err).WithField("job_id", id).Warn("Failed to remove job files")
	}

	w.WriteHeader(http.StatusNoContent)
}

func repositoryFilter(r *http.Request) repository.JobFilter {
	var filter repository.JobFilter
	filter.Status = models.Status(r.URL.Query().Get("status"))
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filter.Offset = v
	}
	return filter
}
