package scripts

import (
	"context"
	"fmt"
)

// ytDlpProbe is the subset of yt-dlp --dump-json output we care about.
type ytDlpProbe struct {
	ID                string                   `json:"id"`
	Title             string                   `json:"title"`
	Duration          float64                  `json:"duration"`
	Subtitles         map[string][]interface{} `json:"subtitles"`
	AutomaticCaptions map[string][]interface{} `json:"automatic_captions"`
}

// Probe fetches video metadata without downloading any media. Used to
// enforce the duration cap before committing to a download.
func (r *Runner) Probe(ctx context.Context, url string) (*VideoInfo, error) {
	const op = "Runner.Probe"

	output, err := r.runTool(ctx, op, r.config.YtDlpPath, true,
		"--dump-json", "--no-download", "--no-playlist", url)
	if err != nil {
		return nil, err
	}

	var probe ytDlpProbe
	if err := unmarshalResult(op, output, &probe); err != nil {
		return nil, err
	}
	if probe.ID == "" {
		return nil, newProcessError(op, FailureInvalidInput, nil,
			fmt.Sprintf("no video metadata for %s", url))
	}

	info := &VideoInfo{
		VideoID:     probe.ID,
		Title:       probe.Title,
		Duration:    probe.Duration,
		HasCaptions: len(probe.Subtitles) > 0,
	}
	for lang := range probe.Subtitles {
		info.CaptionLanguages = append(info.CaptionLanguages, lang)
	}
	return info, nil
}
