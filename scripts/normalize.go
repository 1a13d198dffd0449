package scripts

import (
	"context"
	"os"
)

// NormalizeAudio converts any input media to the mono 16kHz WAV the
// whisper model expects.
func (r *Runner) NormalizeAudio(ctx context.Context, inputPath, outputPath string) (string, error) {
	const op = "Runner.NormalizeAudio"

	if _, err := os.Stat(inputPath); err != nil {
		return "", newProcessError(op, FailureInvalidInput, err, "input media not found")
	}

	_, err := r.runTool(ctx, op, r.config.FFmpegPath, false,
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outputPath,
	)
	if err != nil {
		return "", err
	}
	return outputPath, nil
}
