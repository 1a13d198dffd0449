// Package handlers is the synchronous HTTP surface: job intake,
// status reads, transcript access, and export downloads. Nothing here
// blocks on media processing; submission returns a queued job and the
// dispatcher does the rest.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"transcriptd/config"
	apperrors "transcriptd/errors"
	"transcriptd/middleware"
	"transcriptd/models"
	"transcriptd/repository"
	"transcriptd/storage"
	"transcriptd/validation"
)

// TranscriptArchive reads archived transcript copies back. Used to
// restore a transcript whose local row is gone; nil disables restore.
type TranscriptArchive interface {
	GetTranscript(ctx context.Context, jobID string) (*models.Transcript, error)
}

type Handler struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	media       *storage.MediaStore
	validator   *validation.Validator
	archive     TranscriptArchive
	cfg         *config.Config
	logger      *logrus.Logger
}

func New(
	jobs repository.JobRepository,
	transcripts repository.TranscriptRepository,
	media *storage.MediaStore,
	validator *validation.Validator,
	archive TranscriptArchive,
	cfg *config.Config,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		jobs:        jobs,
		transcripts: transcripts,
		media:       media,
		validator:   validator,
		archive:     archive,
		cfg:         cfg,
		logger:      logger,
	}
}

// NewRouter wires every route with the shared middleware chain.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/jobs/upload", h.CreateUploadJob)
	mux.HandleFunc("POST /api/jobs/youtube", h.CreateYouTubeJob)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.DeleteJob)
	mux.HandleFunc("GET /api/jobs/{id}/transcript", h.GetTranscript)
	mux.HandleFunc("PUT /api/jobs/{id}/transcript", h.UpdateTranscript)
	mux.HandleFunc("GET /api/jobs/{id}/export", h.ExportTranscript)
	mux.HandleFunc("GET /health", h.Health)

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Logging(h.logger),
		middleware.Recovery(h.logger),
	}
	if h.cfg.RateLimit.Enabled {
		middlewares = append(middlewares,
			middleware.RateLimit(h.cfg.RateLimit.RequestsPerSecond, h.cfg.RateLimit.BurstSize))
	}
	return middleware.Chain(mux, middlewares...)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.WithError(err).Error("Failed to encode JSON response")
		}
	}
}

// respondError maps an AppError's code to the HTTP status; anything
// else is a plain 500 with no internals leaked.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := middleware.GetLogger(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= 500 {
			logger.WithError(err).Error("Request failed")
		} else {
			logger.WithError(err).Debug("Request rejected")
		}
		respondJSON(w, appErr.Code, map[string]string{"error": appErr.Message})
		return
	}

	logger.WithError(err).Error("Unhandled error")
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func readJSON(r *http.Request, v interface{}) error {
	const op = "handlers.readJSON"

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.InvalidInput(op, err, "Invalid JSON body")
	}
	return nil
}
