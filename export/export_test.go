package export

import (
	"encoding/json"
	"strings"
	"testing"

	"transcriptd/models"
)

func sampleTranscript() *models.Transcript {
	return models.NewTranscript("job-1", []models.Segment{
		{Start: 0, End: 2.5, Text: "Hello."},
		{Start: 2.5, End: 5.8, Text: "World."},
	}, "en", 5.8)
}

func TestFormatTXT(t *testing.T) {
	out, err := Format(sampleTranscript(), KindTXT)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if string(out) != "Hello. World." {
		t.Errorf("unexpected txt output: %q", out)
	}
}

func TestFormatTXTPrefersEdit(t *testing.T) {
	tr := sampleTranscript()
	tr.EditedText = "Hi there."

	out, err := Format(tr, KindTXT)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if string(out) != "Hi there." {
		t.Errorf("expected edited text to win, got %q", out)
	}
}

func TestFormatSRT(t *testing.T) {
	out, err := Format(sampleTranscript(), KindSRT)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	want := "1\n" +
		"00:00:00,000 --> 00:00:02,500\n" +
		"Hello.\n\n" +
		"2\n" +
		"00:00:02,500 --> 00:00:05,800\n" +
		"World.\n\n"
	if string(out) != want {
		t.Errorf("srt mismatch:\ngot:\n%s\nwant:\n%s", out, want)
	}
}

// An edit must never change subtitle output; timestamps come from
// segments alone.
func TestFormatSRTIgnoresEdit(t *testing.T) {
	tr := sampleTranscript()
	tr.EditedText = "something else entirely"

	out, err := Format(tr, KindSRT)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(string(out), "Hello.") {
		t.Errorf("srt should render from segments, got:\n%s", out)
	}
	if strings.Contains(string(out), "something else") {
		t.Errorf("srt must not include edited text, got:\n%s", out)
	}
}

func TestFormatVTT(t *testing.T) {
	out, err := Format(sampleTranscript(), KindVTT)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:02.500\n" +
		"Hello.\n\n" +
		"00:00:02.500 --> 00:00:05.800\n" +
		"World.\n\n"
	if string(out) != want {
		t.Errorf("vtt mismatch:\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestFormatJSONRoundTrip(t *testing.T) {
	tr := sampleTranscript()
	out, err := Format(tr, KindJSON)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(doc.Segments) != 2 || doc.Segments[1] != tr.Segments[1] {
		t.Errorf("segments did not round-trip: %+v", doc.Segments)
	}
	if doc.Duration != 5.8 || doc.Language != "en" {
		t.Errorf("metadata did not round-trip: %+v", doc)
	}
}

func TestTimestampMath(t *testing.T) {
	tests := []struct {
		seconds float64
		srt     string
		vtt     string
	}{
		{0, "00:00:00,000", "00:00:00.000"},
		{2.5, "00:00:02,500", "00:00:02.500"},
		{59.999, "00:00:59,999", "00:00:59.999"},
		{61.001, "00:01:01,001", "00:01:01.001"},
		{3661.5, "01:01:01,500", "01:01:01.500"},
		{-3, "00:00:00,000", "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := srtTimestamp(tt.seconds); got != tt.srt {
			t.Errorf("srtTimestamp(%v) = %q, want %q", tt.seconds, got, tt.srt)
		}
		if got := vttTimestamp(tt.seconds); got != tt.vtt {
			t.Errorf("vttTimestamp(%v) = %q, want %q", tt.seconds, got, tt.vtt)
		}
	}
}

func TestCleanSubtitleText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  spaced   out  ", "spaced out"},
		{"a\nmultiline\ncue", "a multiline cue"},
		{"tags <i>stay</i> escaped & safe", "tags &lt;i&gt;stay&lt;/i&gt; escaped &amp; safe"},
	}
	for _, tt := range tests {
		if got := cleanSubtitleText(tt.in); got != tt.want {
			t.Errorf("cleanSubtitleText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEmptyTranscript(t *testing.T) {
	if _, err := Format(&models.Transcript{JobID: "x"}, KindTXT); err != ErrEmptyTranscript {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
	if _, err := Format(nil, KindSRT); err != ErrEmptyTranscript {
		t.Errorf("expected ErrEmptyTranscript for nil, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("SRT"); err != nil || k != KindSRT {
		t.Errorf("ParseKind(SRT) = %v, %v", k, err)
	}
	if _, err := ParseKind("docx"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

// The sentinel segment for silent media must still render in every
// format rather than producing an empty artifact.
func TestFormatSentinel(t *testing.T) {
	tr := models.NewTranscript("job-2", nil, "en", 12)

	for _, kind := range []Kind{KindTXT, KindSRT, KindVTT, KindJSON} {
		out, err := Format(tr, kind)
		if err != nil {
			t.Fatalf("Format(%s) failed: %v", kind, err)
		}
		if !strings.Contains(string(out), "no speech detected") {
			t.Errorf("Format(%s) missing sentinel text:\n%s", kind, out)
		}
	}
}
