package worker

import (
	"context"
	"errors"
	"time"

	"bibliotech/internal/metrics"
	"bibliotech/internal/models"

	"github.com/rs/zerolog"
)

// Sweeper expires stale reservations and promotes queues.
type Sweeper interface {
	Sweep(ctx context.Context) (*models.SweepResult, error)
}

// OverdueMarker flags loans past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) ([]*models.Loan, error)
}

// LifecycleWorker runs the periodic reservation sweep and overdue loan scan.
type LifecycleWorker struct {
	sweeper  Sweeper
	loans    OverdueMarker
	interval time.Duration
	retry    RetryPolicy
	logger   *zerolog.Logger

	failures int
}

func NewLifecycleWorker(sweeper Sweeper, loans OverdueMarker, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *LifecycleWorker {
	if interval <= 0 {
		interval = models.DefaultSweepInterval
	}
	return &LifecycleWorker{
		sweeper:  sweeper,
		loans:    loans,
		interval: interval,
		retry:    retry,
		logger:   logger,
	}
}

// RunOnce performs a single pass. The loan scan runs even if the sweep
// failed.
func (w *LifecycleWorker) RunOnce(ctx context.Context) (*models.SweepResult, error) {
	result, sweepErr := w.sweeper.Sweep(ctx)
	if sweepErr != nil {
		metrics.IncSweep("error")
	} else {
		metrics.IncSweep("ok")
	}

	var loanErr error
	if w.loans != nil {
		_, loanErr = w.loans.MarkOverdue(ctx)
	}
	return result, errors.Join(sweepErr, loanErr)
}

// Start blocks until ctx is done. A failed pass delays the next one by the
// retry policy instead of the regular interval.
func (w *LifecycleWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("Lifecycle worker started")
	defer w.logger.Info().Msg("Lifecycle worker stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		timer.Reset(w.tick(ctx))
	}
}

// tick runs one pass and returns the delay until the next.
func (w *LifecycleWorker) tick(ctx context.Context) time.Duration {
	if _, err := w.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return w.interval
		}
		w.failures++
		delay := w.retry.NextDelay(w.failures)
		w.logger.Error().Err(err).Int("failures", w.failures).Dur("retry_in", delay).Msg("Lifecycle pass failed")
		return delay
	}
	w.failures = 0
	return w.interval
}
