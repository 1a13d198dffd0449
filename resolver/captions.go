package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"transcriptd/config"
	"transcriptd/models"
	"transcriptd/scripts"
	"transcriptd/validation"
)

// CaptionFetcher is the slice of the script runner the caption
// resolver needs.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID, language string) (*scripts.CaptionResult, error)
}

// CaptionsResolver serves youtube_captions jobs: creator captions or a
// recorded fallback, never a transcription run.
type CaptionsResolver struct {
	fetcher   CaptionFetcher
	validator *validation.Validator
	cfg       config.YouTubeConfig
	logger    *logrus.Logger
}

func NewCaptionsResolver(fetcher CaptionFetcher, validator *validation.Validator, cfg config.YouTubeConfig, logger *logrus.Logger) *CaptionsResolver {
	return &CaptionsResolver{fetcher: fetcher, validator: validator, cfg: cfg, logger: logger}
}

func (r *CaptionsResolver) Resolve(ctx context.Context, job *models.Job) (*Outcome, error) {
	videoID, err := r.validator.ValidateYouTubeURL(job.SourceURL)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	result, err := r.fetcher.FetchCaptions(fetchCtx, videoID, job.Language)
	if err != nil {
		return nil, err
	}

	if !result.Available {
		reason := result.Reason
		if reason == "" {
			reason = "no captions available for this video"
		}
		r.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"video":  videoID,
			"reason": reason,
		}).Info("Captions unavailable, falling back")
		return fallback(reason), nil
	}

	outcome := &Outcome{
		Kind:     OutcomeReady,
		Segments: result.Segments,
		Language: result.Language,
	}
	if len(result.Segments) > 0 {
		outcome.Duration = result.Segments[len(result.Segments)-1].End
	}
	return outcome, nil
}
