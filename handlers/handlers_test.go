package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transcriptd/config"
	"transcriptd/models"
	"transcriptd/repository/sqlite"
	"transcriptd/storage"
	"transcriptd/validation"
)

type env struct {
	handler     http.Handler
	jobs        *sqlite.JobRepository
	transcripts *sqlite.TranscriptRepository
	media       *storage.MediaStore
	cfg         *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithArchive(t, nil)
}

func newEnvWithArchive(t *testing.T, archive TranscriptArchive) *env {
	t.Helper()

	root := t.TempDir()
	db, err := sqlite.InitDB(filepath.Join(root, "test.db"), sqlite.DefaultDBConfig())
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxFileSize:       10 << 20,
			AllowedExtensions: []string{".mp3", ".mp4", ".wav"},
		},
		YouTube: config.YouTubeConfig{
			AutoIngestEnabled: false,
			MaxDuration:       time.Hour,
		},
		Scripts: config.ScriptsConfig{DefaultModel: "small"},
		RateLimit: config.RateLimitConfig{
			Enabled: false,
		},
	}

	media, err := storage.NewMediaStore(filepath.Join(root, "uploads"), filepath.Join(root, "work"), logger)
	if err != nil {
		t.Fatalf("NewMediaStore failed: %v", err)
	}

	jobs := sqlite.NewJobRepository(db)
	transcripts := sqlite.NewTranscriptRepository(db)
	h := New(jobs, transcripts, media, validation.NewValidator(cfg), archive, cfg, logger)

	return &env{
		handler:     NewRouter(h),
		jobs:        jobs,
		transcripts: transcripts,
		media:       media,
		cfg:         cfg,
	}
}

func (e *env) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) createJob(t *testing.T, status models.Status) *models.Job {
	t.Helper()
	job := &models.Job{
		ID:        uuid.New().String(),
		Kind:      models.SourceYouTubeCaptions,
		SourceURL: "https://youtu.be/dQw4w9WgXcQ",
		Model:     "small",
	}
	if err := e.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if status != models.StatusQueued {
		if _, err := e.jobs.Transition(context.Background(), job.ID, models.StatusQueued, models.StatusRunning, ""); err != nil {
			t.Fatalf("Transition to running failed: %v", err)
		}
	}
	if status == models.StatusDone || status == models.StatusFailed {
		if _, err := e.jobs.Transition(context.Background(), job.ID, models.StatusRunning, status, ""); err != nil {
			t.Fatalf("Transition to %s failed: %v", status, err)
		}
	}
	job.Status = status
	return job
}

func (e *env) putTranscript(t *testing.T, jobID string) {
	t.Helper()
	tr := models.NewTranscript(jobID, []models.Segment{
		{Start: 0, End: 2.5, Text: "Hello."},
		{Start: 2.5, End: 5.8, Text: "World."},
	}, "en", 5.8)
	if err := e.transcripts.Put(context.Background(), tr); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) jobResponse {
	t.Helper()
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding job response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCreateUploadJob(t *testing.T) {
	e := newEnv(t)

	body, contentType := multipartUpload(t, "lecture.mp3", "audio bytes", map[string]string{"model": "base"})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := e.do(t, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJob(t, rec)
	if resp.Status != "queued" || resp.Kind != "file_upload" || resp.Model != "base" {
		t.Errorf("unexpected job response: %+v", resp)
	}
	if resp.OriginalFilename != "lecture.mp3" {
		t.Errorf("original filename not preserved: %q", resp.OriginalFilename)
	}

	// The upload must be on disk under the job's directory.
	stored, err := e.jobs.Find(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	data, err := os.ReadFile(e.media.UploadPath(stored.ID, stored.StoredFilename))
	if err != nil || string(data) != "audio bytes" {
		t.Errorf("stored upload mismatch: %q %v", data, err)
	}
}

func TestCreateUploadJobRejectsExtension(t *testing.T) {
	e := newEnv(t)

	body, contentType := multipartUpload(t, "malware.exe", "nope", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := e.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for disallowed extension, got %d", rec.Code)
	}
}

func TestCreateYouTubeJobSafeMode(t *testing.T) {
	e := newEnv(t)

	body := strings.NewReader(`{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`)
	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/youtube", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJob(t, rec)
	if resp.Kind != "youtube_captions" {
		t.Errorf("default mode must be captions-only, got %s", resp.Kind)
	}
	if resp.Model != "small" {
		t.Errorf("expected default model, got %s", resp.Model)
	}
}

func TestCreateYouTubeJobAutoModeGated(t *testing.T) {
	e := newEnv(t)

	body := strings.NewReader(`{"url": "https://youtu.be/dQw4w9WgXcQ", "mode": "auto"}`)
	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/youtube", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("auto mode must be rejected while disabled, got %d", rec.Code)
	}

	e.cfg.YouTube.AutoIngestEnabled = true
	body = strings.NewReader(`{"url": "https://youtu.be/dQw4w9WgXcQ", "mode": "auto"}`)
	rec = e.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/youtube", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with flag enabled, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeJob(t, rec); resp.Kind != "youtube_auto_ingest" {
		t.Errorf("expected auto ingest kind, got %s", resp.Kind)
	}
}

func TestCreateYouTubeJobRejectsForeignHost(t *testing.T) {
	e := newEnv(t)

	body := strings.NewReader(`{"url": "https://vimeo.com/12345"}`)
	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/youtube", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-YouTube host, got %d", rec.Code)
	}
}

func TestGetJobReportsFallback(t *testing.T) {
	e := newEnv(t)

	job := e.createJob(t, models.StatusRunning)
	if err := e.jobs.MarkFallback(context.Background(), job.ID, "no captions available"); err != nil {
		t.Fatalf("MarkFallback failed: %v", err)
	}

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeJob(t, rec)
	if resp.Status != "fallback" {
		t.Errorf("expected reported status fallback, got %s", resp.Status)
	}
	if resp.Error != "" {
		t.Errorf("fallback must not expose an error, got %q", resp.Error)
	}
	if resp.FallbackReason != "no captions available" {
		t.Errorf("fallback reason missing: %+v", resp)
	}
}

func TestGetJobNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListJobsStatusFilter(t *testing.T) {
	e := newEnv(t)
	e.createJob(t, models.StatusQueued)
	e.createJob(t, models.StatusDone)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?status=done", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Jobs []jobResponse `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].Status != "done" {
		t.Errorf("unexpected filtered list: %+v", resp.Jobs)
	}

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestDeleteJob(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)
	e.putTranscript(t, job.ID)

	rec := e.do(t, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if _, err := e.jobs.Find(context.Background(), job.ID); err == nil {
		t.Error("job must be gone after delete")
	}
	if _, err := e.transcripts.Get(context.Background(), job.ID); err == nil {
		t.Error("transcript must cascade on delete")
	}
}

func TestDeleteRunningJobRejected(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusRunning)

	rec := e.do(t, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for running job, got %d", rec.Code)
	}
}

func TestGetTranscript(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)
	e.putTranscript(t, job.ID)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/jobs/%s/transcript", job.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if resp.Text != "Hello. World." || len(resp.Segments) != 2 {
		t.Errorf("unexpected transcript response: %+v", resp)
	}
}

type archiveFunc func(ctx context.Context, jobID string) (*models.Transcript, error)

func (fn archiveFunc) GetTranscript(ctx context.Context, jobID string) (*models.Transcript, error) {
	return fn(ctx, jobID)
}

// A done job whose transcript row was lost is served from the archive,
// and the restored copy lands back in the local store.
func TestGetTranscriptRestoresFromArchive(t *testing.T) {
	archived := models.NewTranscript("", []models.Segment{
		{Start: 0, End: 3, Text: "Recovered words."},
	}, "en", 3)
	e := newEnvWithArchive(t, archiveFunc(func(ctx context.Context, jobID string) (*models.Transcript, error) {
		archived.JobID = jobID
		return archived, nil
	}))

	job := e.createJob(t, models.StatusDone)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/jobs/%s/transcript", job.ID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from archive restore, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if resp.Text != "Recovered words." {
		t.Errorf("unexpected restored transcript: %+v", resp)
	}

	// The restored copy is persisted for the next read.
	if _, err := e.transcripts.Get(context.Background(), job.ID); err != nil {
		t.Errorf("restored transcript must be re-persisted: %v", err)
	}
}

func TestGetTranscriptMissingWithoutArchive(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/jobs/%s/transcript", job.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no archive configured, got %d", rec.Code)
	}
}

func TestUpdateTranscript(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)
	e.putTranscript(t, job.ID)

	body := strings.NewReader(`{"text": "Hi there!"}`)
	rec := e.do(t, httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/jobs/%s/transcript", job.ID), body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if !resp.Edited || resp.Text != "Hi there!" {
		t.Errorf("edit not applied: %+v", resp)
	}
	// The original segment text is untouched.
	if resp.FullText != "Hello. World." {
		t.Errorf("full text must be preserved: %q", resp.FullText)
	}
}

func TestUpdateTranscriptRequiresDoneJob(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusRunning)

	body := strings.NewReader(`{"text": "too soon"}`)
	rec := e.do(t, httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/jobs/%s/transcript", job.ID), body))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for non-done job, got %d", rec.Code)
	}
}

func TestExportFormats(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)
	e.putTranscript(t, job.ID)

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{"txt", "text/plain", "Hello. World."},
		{"srt", "application/x-subrip", "00:00:02,500 --> 00:00:05,800"},
		{"vtt", "text/vtt", "WEBVTT"},
		{"json", "application/json", `"segments"`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			url := fmt.Sprintf("/api/jobs/%s/export?format=%s", job.ID, tt.format)
			rec := e.do(t, httptest.NewRequest(http.MethodGet, url, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("unexpected content type: %s", ct)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
				t.Errorf("expected attachment disposition, got %s", cd)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestExportUnknownFormat(t *testing.T) {
	e := newEnv(t)
	job := e.createJob(t, models.StatusDone)
	e.putTranscript(t, job.ID)

	url := fmt.Sprintf("/api/jobs/%s/export?format=docx", job.ID)
	rec := e.do(t, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}
}
