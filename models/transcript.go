package models

import (
	"fmt"
	"strings"
	"time"
)

// SentinelText marks a successful transcription that produced no
// speech. Stored as a single segment spanning the known duration so
// export logic never sees an empty segment list.
const SentinelText = "[no speech detected]"

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	JobID        string     `json:"job_id"`
	Segments     []Segment  `json:"segments"`
	FullText     string     `json:"full_text"`
	EditedText   string     `json:"edited_text,omitempty"`
	Language     string     `json:"language,omitempty"`
	Duration     float64    `json:"duration"`
	CreatedAt    time.Time  `json:"created_at"`
	LastEditedAt *time.Time `json:"last_edited_at,omitempty"`
}

func (t *Transcript) Edited() bool { return t.LastEditedAt != nil }

// ExportText is the canonical source for plain-text export: a user
// edit takes precedence over the machine-derived concatenation.
func (t *Transcript) ExportText() string {
	if t.EditedText != "" {
		return t.EditedText
	}
	return t.FullText
}

// JoinSegments derives full text by concatenating segment texts in
// temporal order.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// ValidateSegments rejects structurally invalid timing: negative
// starts, end before start, or starts that go backwards.
func ValidateSegments(segments []Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("segments must not be empty")
	}
	prevStart := -1.0
	for i, seg := range segments {
		if seg.Start < 0 {
			return fmt.Errorf("segment %d: negative start %.3f", i, seg.Start)
		}
		if seg.End < seg.Start {
			return fmt.Errorf("segment %d: end %.3f before start %.3f", i, seg.End, seg.Start)
		}
		if seg.Start < prevStart {
			return fmt.Errorf("segment %d: start %.3f before previous start %.3f", i, seg.Start, prevStart)
		}
		prevStart = seg.Start
	}
	return nil
}

// SentinelSegments represents an empty-but-successful transcription.
func SentinelSegments(duration float64) []Segment {
	if duration < 0 {
		duration = 0
	}
	return []Segment{{Start: 0, End: duration, Text: SentinelText}}
}

// NewTranscript builds the artifact written on job completion.
func NewTranscript(jobID string, segments []Segment, language string, duration float64) *Transcript {
	if len(segments) == 0 {
		segments = SentinelSegments(duration)
	}
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}
	return &Transcript{
		JobID:     jobID,
		Segments:  segments,
		FullText:  JoinSegments(segments),
		Language:  language,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}
}
