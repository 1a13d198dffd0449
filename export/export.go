// Package export renders a transcript into downloadable formats. All
// formatting is pure: no I/O, no clock, same input same bytes.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"transcriptd/models"
)

type Kind string

const (
	KindTXT  Kind = "txt"
	KindSRT  Kind = "srt"
	KindVTT  Kind = "vtt"
	KindJSON Kind = "json"
)

// ErrEmptyTranscript guards against an artifact with no segments. The
// sentinel-segment invariant means it should never fire in practice.
var ErrEmptyTranscript = errors.New("transcript has no segments")

var errUnknownKind = errors.New("unknown export format")

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindTXT, KindSRT, KindVTT, KindJSON:
		return Kind(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("%w: %q", errUnknownKind, s)
}

func (k Kind) ContentType() string {
	switch k {
	case KindSRT:
		return "application/x-subrip"
	case KindVTT:
		return "text/vtt; charset=utf-8"
	case KindJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (k Kind) Filename() string {
	return "transcript." + string(k)
}

// Format renders the transcript in the requested format.
//
// txt honors a user edit; srt and vtt always render from segments, so
// editing the text alone never desynchronizes subtitle timestamps.
func Format(t *models.Transcript, kind Kind) ([]byte, error) {
	if t == nil || len(t.Segments) == 0 {
		return nil, ErrEmptyTranscript
	}

	switch kind {
	case KindTXT:
		return formatTXT(t), nil
	case KindSRT:
		return formatSRT(t), nil
	case KindVTT:
		return formatVTT(t), nil
	case KindJSON:
		return formatJSON(t)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
	}
}

func formatTXT(t *models.Transcript) []byte {
	return []byte(t.ExportText())
}

type jsonDocument struct {
	Segments []models.Segment `json:"segments"`
	Duration float64          `json:"duration"`
	Language string           `json:"language"`
}

func formatJSON(t *models.Transcript) ([]byte, error) {
	doc := jsonDocument{
		Segments: t.Segments,
		Duration: t.Duration,
		Language: t.Language,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func formatSRT(t *models.Transcript) []byte {
	var buf bytes.Buffer
	index := 1
	for _, seg := range t.Segments {
		text := cleanSubtitleText(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&buf, "%d\n", index)
		fmt.Fprintf(&buf, "%s --> %s\n", srtTimestamp(seg.Start), srtTimestamp(seg.End))
		buf.WriteString(text)
		buf.WriteString("\n\n")
		index++
	}
	return buf.Bytes()
}

func formatVTT(t *models.Transcript) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")
	for _, seg := range t.Segments {
		text := cleanSubtitleText(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s --> %s\n", vttTimestamp(seg.Start), vttTimestamp(seg.End))
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// splitMillis converts seconds to integer clock parts, avoiding float
// drift on the millisecond component.
func splitMillis(seconds float64) (h, m, s, ms int64) {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	h = total / 3_600_000
	m = (total % 3_600_000) / 60_000
	s = (total % 60_000) / 1000
	ms = total % 1000
	return
}

// SRT renders HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	h, m, s, ms := splitMillis(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WebVTT renders HH:MM:SS.mmm.
func vttTimestamp(seconds float64) string {
	h, m, s, ms := splitMillis(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

var multiSpace = regexp.MustCompile(`\s+`)

func cleanSubtitleText(text string) string {
	text = multiSpace.ReplaceAllString(strings.TrimSpace(text), " ")
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
