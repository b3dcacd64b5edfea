package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
	"github.com/louisbranch/combatsim/internal/platform/timeouts"
	"github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage"
)

// Worker drains the job queue, running one batch at a time.
type Worker struct {
	store        storage.JobStore
	runner       *sim.Runner
	pollInterval time.Duration
	now          func() time.Time
}

// NewWorker returns a worker polling store every pollInterval.
func NewWorker(store storage.JobStore, runner *sim.Runner, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = timeouts.JobPoll
	}
	return &Worker{store: store, runner: runner, pollInterval: pollInterval, now: time.Now}
}

// Run polls until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.store == nil || w.runner == nil {
		return fmt.Errorf("worker is not configured")
	}
	w.drain(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			log.Printf("process job: %v", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext claims and runs the oldest queued job. It reports false when
// the queue is empty.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	var lifecycle *jobLifecycle
	job, ok, err := w.store.ClaimNextJob(ctx, w.now().UTC(), func(queued storage.JobRecord) (storage.JobRecord, error) {
		lifecycle = newJobLifecycle(queued)
		return lifecycle.fire(ctx, eventStart)
	})
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if !ok {
		return false, nil
	}

	event, batchID, runErr := w.runJob(ctx, job)
	updated, fireErr := w.finish(ctx, lifecycle, event, batchID, runErr)

	// Record the final status even when shutdown interrupted the batch.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.StoreOp)
	defer cancel()
	if err := w.store.UpdateJob(storeCtx, updated); err != nil {
		return true, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	log.Printf("job %s %s", job.ID, updated.Status)
	return true, fireErr
}

// finish moves a claimed job to the status event leads to. A rejected event
// still fails the job so it never stays running.
func (w *Worker) finish(ctx context.Context, lifecycle *jobLifecycle, event, batchID string, runErr error) (storage.JobRecord, error) {
	updated, err := lifecycle.fire(ctx, event)
	if err != nil {
		updated.Status = storage.JobFailed
		runErr = errors.Join(runErr, err)
	}
	updated.BatchID = batchID
	updated.UpdatedAt = w.now().UTC()
	if runErr != nil {
		updated.Error = runErr.Error()
	}
	return updated, err
}

// runJob returns the lifecycle event that ends job.
func (w *Worker) runJob(ctx context.Context, job storage.JobRecord) (string, string, error) {
	cfg, err := sim.DecodeConfig(job.Config)
	if err != nil {
		return eventFail, "", err
	}
	out, err := w.runner.Run(ctx, cfg)
	if err != nil {
		return eventFail, "", err
	}
	switch {
	case out.Result.Cancelled:
		return eventCancel, out.BatchID, apperrors.New(apperrors.CodeSimCancelled,
			fmt.Sprintf("cancelled after %d of %d trials", out.Result.Trials, out.Result.Requested))
	case out.Result.ExceededMaxVolleys:
		return eventFail, out.BatchID, apperrors.New(apperrors.CodeSimMaxVolleysExceeded,
			"defender survived the maximum number of volleys")
	}
	return eventSucceed, out.BatchID, nil
}
