package scripts

import "transcriptd/models"

// TranscriptionResult is the JSON contract with the whisper script.
type TranscriptionResult struct {
	Segments []models.Segment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

// VideoInfo is the metadata probe result for a remote video.
type VideoInfo struct {
	VideoID          string   `json:"video_id"`
	Title            string   `json:"title"`
	Duration         float64  `json:"duration"`
	HasCaptions      bool     `json:"has_captions"`
	CaptionLanguages []string `json:"caption_languages"`
}

// CaptionResult is what the caption fetch script returns: either
// segments, or an empty set with the reason captions were unusable.
type CaptionResult struct {
	Available bool             `json:"available"`
	Segments  []models.Segment `json:"segments"`
	Language  string           `json:"language"`
	Reason    string           `json:"reason"`
}
