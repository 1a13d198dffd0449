package scripts

import "context"

// FetchCaptions retrieves creator-provided captions for a video. When
// none are usable the result carries Available=false and a reason; the
// caller treats that as a fallback signal, not an error.
func (r *Runner) FetchCaptions(ctx context.Context, videoID, language string) (*CaptionResult, error) {
	const op = "Runner.FetchCaptions"

	args := []string{"--video-id", videoID}
	if language != "" {
		args = append(args, "--language", language)
	}

	output, err := r.runScript(ctx, op, "fetch_captions.py", args...)
	if err != nil {
		return nil, err
	}

	var result CaptionResult
	if err := unmarshalResult(op, output, &result); err != nil {
		return nil, err
	}
	if result.Available && result.Reason == "" && len(result.Segments) == 0 {
		// The script claims availability but sent nothing usable.
		result.Available = false
		result.Reason = "caption track is empty"
	}
	return &result, nil
}
