package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"transcriptd/config"
	"transcriptd/models"
	"transcriptd/scripts"
	"transcriptd/storage"
	"transcriptd/validation"
)

// MediaFetcher covers the probe/download/normalize path to a local
// audio file.
type MediaFetcher interface {
	Probe(ctx context.Context, url string) (*scripts.VideoInfo, error)
	DownloadAudio(ctx context.Context, url, destPath string, maxFileSizeMB int64) (string, error)
	NormalizeAudio(ctx context.Context, inputPath, outputPath string) (string, error)
}

// AutoIngestResolver downloads a video's audio for local
// transcription. Gated behind an explicit opt-in flag; the probe runs
// before any download so an over-long video costs one metadata fetch,
// not a wasted transfer.
type AutoIngestResolver struct {
	fetcher   MediaFetcher
	media     *storage.MediaStore
	validator *validation.Validator
	cfg       config.YouTubeConfig
	logger    *logrus.Logger
}

func NewAutoIngestResolver(fetcher MediaFetcher, media *storage.MediaStore, validator *validation.Validator, cfg config.YouTubeConfig, logger *logrus.Logger) *AutoIngestResolver {
	return &AutoIngestResolver{fetcher: fetcher, media: media, validator: validator, cfg: cfg, logger: logger}
}

func (r *AutoIngestResolver) Resolve(ctx context.Context, job *models.Job) (*Outcome, error) {
	const op = "AutoIngestResolver.Resolve"

	if !r.cfg.AutoIngestEnabled {
		// Submission should have rejected this job; refuse rather
		// than quietly download.
		return nil, scripts.NewProcessError(op, scripts.FailureInvalidInput, nil,
			"auto ingest is disabled")
	}

	if _, err := r.validator.ValidateYouTubeURL(job.SourceURL); err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	info, err := r.fetcher.Probe(probeCtx, job.SourceURL)
	cancel()
	if err != nil {
		return nil, err
	}

	if maxSeconds := r.cfg.MaxDuration.Seconds(); info.Duration > maxSeconds {
		// Over-long videos fail the job outright; a retry would probe
		// the same duration again.
		return nil, scripts.NewProcessError(op, scripts.FailureInvalidInput, nil,
			fmt.Sprintf("video is %s, longer than the %s limit",
				time.Duration(info.Duration)*time.Second, r.cfg.MaxDuration))
	}

	rawPath, err := r.media.WorkPath(job.ID, "download.wav")
	if err != nil {
		return nil, err
	}

	downloadCtx, cancel := context.WithTimeout(ctx, r.cfg.DownloadTimeout)
	defer cancel()
	if _, err := r.fetcher.DownloadAudio(downloadCtx, job.SourceURL, rawPath, r.cfg.MaxFileSizeMB); err != nil {
		return nil, err
	}

	audioPath, err := r.media.WorkPath(job.ID, "audio.wav")
	if err != nil {
		return nil, err
	}
	if _, err := r.fetcher.NormalizeAudio(ctx, rawPath, audioPath); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video":    info.VideoID,
		"duration": info.Duration,
	}).Debug("Video audio ready for transcription")

	return &Outcome{
		Kind:      OutcomeNeedsTranscription,
		AudioPath: audioPath,
		Title:     info.Title,
		Cleanup:   func() { r.media.RemoveWorkFiles(job.ID) },
	}, nil
}
