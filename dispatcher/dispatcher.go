// Package dispatcher runs the worker pool that drains the job queue.
// Workers claim jobs exclusively, resolve their source, transcribe
// when needed, and write the transcript before flipping the job to
// done so a done job always has its artifact.
package dispatcher

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"transcriptd/config"
	apperrors "transcriptd/errors"
	"transcriptd/models"
	"transcriptd/repository"
	"transcriptd/resolver"
	"transcriptd/scripts"
)

// Transcriber converts a local audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model, language string) (*scripts.TranscriptionResult, error)
}

// Archiver mirrors a completed transcript off-box. Optional.
type Archiver interface {
	PutTranscript(ctx context.Context, t *models.Transcript) error
}

type Dispatcher struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	resolvers   *resolver.Set
	transcriber Transcriber
	archiver    Archiver
	cfg         config.WorkerConfig
	logger      *logrus.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

func New(
	jobs repository.JobRepository,
	transcripts repository.TranscriptRepository,
	resolvers *resolver.Set,
	transcriber Transcriber,
	archiver Archiver,
	cfg config.WorkerConfig,
	logger *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		jobs:        jobs,
		transcripts: transcripts,
		resolvers:   resolvers,
		transcriber: transcriber,
		archiver:    archiver,
		cfg:         cfg,
		logger:      logger,
		stop:        make(chan struct{}),
	}
}

// Start launches the worker pool and the stale-job sweeper. Workers
// poll on an interval; an idle tick is cheap and keeps the design free
// of cross-process signaling.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Count; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}

	d.wg.Add(1)
	go d.sweepLoop(ctx)

	d.logger.WithField("workers", d.cfg.Count).Info("Dispatcher started")
}

// Stop signals all loops to exit and waits for in-flight jobs to
// finish their current step.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	defer d.wg.Done()

	logger := d.logger.WithField("worker", id)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain the queue before going back to sleep.
		for d.claimAndProcess(ctx, logger) {
			select {
			case <-d.stop:
				return
			case <-ctx.Done():
				return
			default:
			}
		}

		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// claimAndProcess takes at most one job. Returns true if a job was
// claimed, signaling the caller to immediately look for another.
func (d *Dispatcher) claimAndProcess(ctx context.Context, logger *logrus.Entry) bool {
	job, err := d.jobs.Claim(ctx, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Error("Claim failed")
		return false
	}
	if job == nil {
		return false
	}

	logger = logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"kind":    job.Kind,
		"attempt": job.Attempts,
	})
	logger.Info("Job claimed")

	procCtx, cancel := context.WithTimeout(ctx, d.cfg.ProcessTimeout)
	defer cancel()

	d.process(procCtx, logger, job)
	return true
}

func (d *Dispatcher) process(ctx context.Context, logger *logrus.Entry, job *models.Job) {
	outcome, err := d.resolvers.Resolve(ctx, job)
	if err != nil {
		d.handleFailure(ctx, logger, job, err)
		return
	}
	defer outcome.Close()

	if outcome.Title != "" && job.Title == "" {
		if err := d.jobs.SetTitle(ctx, job.ID, outcome.Title); err != nil {
			logger.WithError(err).Warn("Failed to record job title")
		}
	}

	switch outcome.Kind {
	case resolver.OutcomeFallback:
		d.handleFallback(ctx, logger, job, outcome.Reason)

	case resolver.OutcomeReady:
		t := models.NewTranscript(job.ID, outcome.Segments, outcome.Language, outcome.Duration)
		d.complete(ctx, logger, job, t)

	case resolver.OutcomeNeedsTranscription:
		result, err := d.transcriber.Transcribe(ctx, outcome.AudioPath, job.Model, job.Language)
		if err != nil {
			d.handleFailure(ctx, logger, job, err)
			return
		}
		t := models.NewTranscript(job.ID, result.Segments, result.Language, result.Duration)
		d.complete(ctx, logger, job, t)
	}
}

// complete persists the artifact and only then flips the job to done.
// If the process dies between the two writes, the job is eventually
// swept back to queued and the duplicate Put on the next attempt is
// absorbed as a conflict.
func (d *Dispatcher) complete(ctx context.Context, logger *logrus.Entry, job *models.Job, t *models.Transcript) {
	if err := d.transcripts.Put(ctx, t); err != nil {
		if !apperrors.IsConflict(err) {
			d.handleFailure(ctx, logger, job, err)
			return
		}
		// A previous attempt already wrote the transcript; finishing
		// the flip is all that is left.
		logger.Info("Transcript already stored by an earlier attempt")
	}

	if _, err := d.jobs.Transition(ctx, job.ID, models.StatusRunning, models.StatusDone, ""); err != nil {
		logger.WithError(err).Error("Failed to mark job done")
		return
	}
	logger.WithField("segments", len(t.Segments)).Info("Job completed")

	if d.archiver != nil {
		// Archive failures never affect job state; the database copy
		// is authoritative.
		if err := d.archiver.PutTranscript(ctx, t); err != nil {
			logger.WithError(err).Warn("Failed to archive transcript")
		}
	}
}

// handleFallback terminates the job without recording an error. A
// fallback is an answer, not a failure: the reason is kept and the job
// is never retried.
func (d *Dispatcher) handleFallback(ctx context.Context, logger *logrus.Entry, job *models.Job, reason string) {
	if err := d.jobs.MarkFallback(ctx, job.ID, reason); err != nil {
		logger.WithError(err).Error("Failed to mark job fallback")
		return
	}
	logger.WithField("reason", reason).Info("Job fell back")
}

func (d *Dispatcher) handleFailure(ctx context.Context, logger *logrus.Entry, job *models.Job, procErr error) {
	retriable := scripts.IsRetriable(procErr) && !apperrors.IsInvalidInput(procErr)

	if retriable && job.Attempts+1 < d.cfg.MaxAttempts {
		notBefore := time.Now().UTC().Add(d.backoff(job.Attempts))
		if err := d.jobs.Requeue(ctx, job.ID, notBefore); err != nil {
			logger.WithError(err).Error("Failed to requeue job")
			return
		}
		logger.WithFields(logrus.Fields{
			"error":      procErr,
			"not_before": notBefore,
		}).Warn("Job requeued after transient failure")
		return
	}

	if _, err := d.jobs.Transition(ctx, job.ID, models.StatusRunning, models.StatusFailed, procErr.Error()); err != nil {
		logger.WithError(err).Error("Failed to mark job failed")
		return
	}
	logger.WithError(procErr).Error("Job failed")
}

// backoff grows exponentially with the attempt count, capped, with
// jitter so retries from a burst of failures spread out.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	base := float64(d.cfg.InitialBackoff) * math.Pow(2, float64(attempts))
	if capped := float64(d.cfg.MaxBackoff); base > capped {
		base = capped
	}
	jitter := rand.Float64() * 0.25 * base
	return time.Duration(base + jitter)
}
