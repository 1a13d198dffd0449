package dispatcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"transcriptd/models"
)

// sweepLoop periodically recovers jobs stranded in running by a
// crashed or partitioned worker. A stale job goes back to the queue
// with its attempt counter bumped, or fails outright once the retry
// budget is spent.
func (d *Dispatcher) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-d.cfg.StaleAfter)
	stale, err := d.jobs.FindStale(ctx, cutoff)
	if err != nil {
		d.logger.WithError(err).Error("Stale job sweep failed")
		return
	}

	for _, job := range stale {
		logger := d.logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"attempt":    job.Attempts,
			"updated_at": job.UpdatedAt,
		})

		if job.Attempts+1 < d.cfg.MaxAttempts {
			if err := d.jobs.Requeue(ctx, job.ID, time.Now().UTC().Add(d.backoff(job.Attempts))); err != nil {
				// The worker may have finished between the query and
				// this write; the conditional update loses gracefully.
				logger.WithError(err).Warn("Failed to requeue stale job")
				continue
			}
			logger.Warn("Stale job requeued")
			continue
		}

		if _, err := d.jobs.Transition(ctx, job.ID, models.StatusRunning, models.StatusFailed,
			"abandoned: no progress within the stale threshold"); err != nil {
			logger.WithError(err).Warn("Failed to fail stale job")
			continue
		}
		logger.Error("Stale job abandoned after exhausting attempts")
	}
}
