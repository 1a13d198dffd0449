package scripts

import (
	"context"
	"fmt"
	"os"
)

// DownloadAudio extracts the audio track of a remote video to destPath
// as WAV. maxFileSizeMB bounds the download; yt-dlp aborts past it.
func (r *Runner) DownloadAudio(ctx context.Context, url, destPath string, maxFileSizeMB int64) (string, error) {
	const op = "Runner.DownloadAudio"

	args := []string{
		"-x",
		"--audio-format", "wav",
		"--no-playlist",
		"-o", destPath,
	}
	if maxFileSizeMB > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", maxFileSizeMB))
	}
	args = append(args, url)

	if _, err := r.runTool(ctx, op, r.config.YtDlpPath, false, args...); err != nil {
		return "", err
	}

	if _, err := os.Stat(destPath); err != nil {
		// yt-dlp exits zero when --max-filesize skips the download.
		return "", newProcessError(op, FailureInvalidInput, err,
			"download produced no file (size limit exceeded?)")
	}
	return destPath, nil
}
