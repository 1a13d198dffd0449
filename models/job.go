package models

import (
	"time"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

type SourceKind string

const (
	SourceFileUpload        SourceKind = "file_upload"
	SourceYouTubeCaptions   SourceKind = "youtube_captions"
	SourceYouTubeAutoIngest SourceKind = "youtube_auto_ingest"
)

// ReportedStatusFallback is the wire-level status shown for jobs that
// terminated via a resolver fallback (e.g. no captions). Stored status
// stays within the four-value domain; the fallback_reason column marks
// the distinction.
const ReportedStatusFallback = "fallback"

var modelSizes = map[string]bool{
	"tiny":   true,
	"base":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

func ValidModelSize(m string) bool { return modelSizes[m] }

type Job struct {
	ID               string     `json:"id"`
	Kind             SourceKind `json:"kind"`
	SourceURL        string     `json:"source_url,omitempty"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	StoredFilename   string     `json:"-"`
	Title            string     `json:"title,omitempty"`
	Status           Status     `json:"status"`
	Model            string     `json:"model"`
	Language         string     `json:"language"`
	Error            string     `json:"error,omitempty"`
	FallbackReason   string     `json:"fallback_reason,omitempty"`
	Attempts         int        `json:"attempts"`
	NotBefore        time.Time  `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (j *Job) IsQueued() bool  { return j.Status == StatusQueued }
func (j *Job) IsRunning() bool { return j.Status == StatusRunning }
func (j *Job) IsDone() bool    { return j.Status == StatusDone }
func (j *Job) IsFailed() bool  { return j.Status == StatusFailed }

// IsFallback reports whether the job terminated via a non-error
// fallback outcome rather than a genuine failure.
func (j *Job) IsFallback() bool {
	return j.Status == StatusFailed && j.FallbackReason != ""
}

func (j *Job) IsTerminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// ReportedStatus is what listings and job detail expose to clients.
func (j *Job) ReportedStatus() string {
	if j.IsFallback() {
		return ReportedStatusFallback
	}
	return string(j.Status)
}

// IsStale checks if the job has been stuck in running for too long,
// which is the crash/heartbeat-loss proxy used by the sweep.
func (j *Job) IsStale(threshold time.Duration) bool {
	if j.Status != StatusRunning {
		return false
	}
	return time.Since(j.UpdatedAt) > threshold
}

// CanTransition enforces the state machine: queued → running →
// done/failed, with running → queued as the single retry edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusDone || to == StatusFailed || to == StatusQueued
	default:
		return false
	}
}
