package resolver

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"transcriptd/models"
	"transcriptd/scripts"
	"transcriptd/storage"
)

// AudioNormalizer is the slice of the script runner the upload
// resolver needs.
type AudioNormalizer interface {
	NormalizeAudio(ctx context.Context, inputPath, outputPath string) (string, error)
}

// UploadResolver prepares a previously uploaded media file for
// transcription.
type UploadResolver struct {
	media      *storage.MediaStore
	normalizer AudioNormalizer
	logger     *logrus.Logger
}

func NewUploadResolver(media *storage.MediaStore, normalizer AudioNormalizer, logger *logrus.Logger) *UploadResolver {
	return &UploadResolver{media: media, normalizer: normalizer, logger: logger}
}

func (r *UploadResolver) Resolve(ctx context.Context, job *models.Job) (*Outcome, error) {
	const op = "UploadResolver.Resolve"

	source := r.media.UploadPath(job.ID, job.StoredFilename)
	if _, err := os.Stat(source); err != nil {
		// The upload vanished between submission and claim. Retrying
		// cannot bring it back.
		return nil, scripts.NewProcessError(op, scripts.FailureInvalidInput,
			errors.Wrapf(err, "job %s", job.ID), "uploaded file is missing")
	}

	audioPath, err := r.media.WorkPath(job.ID, "audio.wav")
	if err != nil {
		return nil, err
	}
	// Normalization failures, including media with no audio stream,
	// are real failures: the class decides whether a retry is worth
	// anything, and the error is persisted on the job.
	if _, err := r.normalizer.NormalizeAudio(ctx, source, audioPath); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"audio":  audioPath,
	}).Debug("Upload normalized for transcription")

	return &Outcome{
		Kind:      OutcomeNeedsTranscription,
		AudioPath: audioPath,
		Cleanup:   func() { r.media.RemoveWorkFiles(job.ID) },
	}, nil
}
