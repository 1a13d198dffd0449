package scripts

import (
	"context"
	"fmt"
	"os"

	"transcriptd/models"
)

// Transcribe runs the whisper script over a local audio file and
// returns timed segments. The audio is expected to be normalized
// already (mono 16kHz WAV).
func (r *Runner) Transcribe(ctx context.Context, audioPath, model, language string) (*TranscriptionResult, error) {
	const op = "Runner.Transcribe"

	if _, err := os.Stat(audioPath); err != nil {
		return nil, newProcessError(op, FailureInvalidInput, err,
			fmt.Sprintf("audio file not found: %s", audioPath))
	}
	if model == "" {
		model = r.config.DefaultModel
	}
	if !models.ValidModelSize(model) {
		return nil, newProcessError(op, FailureInvalidInput, nil,
			fmt.Sprintf("unknown model size: %s", model))
	}

	args := []string{"--audio", audioPath, "--model", model, "--output-format", "json"}
	if language != "" {
		args = append(args, "--language", language)
	}

	output, err := r.runScript(ctx, op, "transcribe.py", args...)
	if err != nil {
		return nil, err
	}

	var result TranscriptionResult
	if err := unmarshalResult(op, output, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
