package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultPollInterval is how long the worker sleeps on an empty queue.
const DefaultPollInterval = 2 * time.Second

// Worker is the single-writer polling loop: it claims at most one pending
// reprocess job, else one pending ingestion job, and runs it to settlement
// before looking again.
type Worker struct {
	pipeline *Pipeline
	interval time.Duration
}

// NewWorker builds a worker over the pipeline.
func NewWorker(pipeline *Pipeline, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Worker{pipeline: pipeline, interval: interval}
}

// Run polls until the context is cancelled. Job failures are already settled
// by the state machine, so they keep the loop alive.
func (w *Worker) Run(ctx context.Context) error {
	zap.L().Info("worker: started", zap.Duration("poll_interval", w.interval))
	for {
		processed, err := w.Step(ctx)
		if err != nil {
			zap.L().Warn("worker: job cycle ended in failure", zap.Error(err))
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			zap.L().Info("worker: stopped")
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

// Step claims and runs at most one job. It reports whether any job was
// claimed; the error is the job's processing outcome, not a loop failure.
func (w *Worker) Step(ctx context.Context) (bool, error) {
	reprocess, err := w.pipeline.store.ClaimNextReprocessJob(ctx)
	if err != nil {
		return false, eris.Wrap(err, "worker: claim reprocess job")
	}
	if reprocess != nil {
		return true, w.pipeline.RunReprocessJob(ctx, reprocess)
	}

	ingestion, err := w.pipeline.store.ClaimNextIngestionJob(ctx)
	if err != nil {
		return false, eris.Wrap(err, "worker: claim ingestion job")
	}
	if ingestion != nil {
		return true, w.pipeline.RunIngestionJob(ctx, ingestion)
	}
	return false, nil
}
