package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wanvideo/generation-be/internal/pipeline"
	"github.com/wanvideo/generation-be/internal/worker/domain"
)

// processJob runs a single generation job: claim, parse, dispatch through
// the pipeline, persist the envelope. The returned error drives the
// ACK/NACK decision only; the job row always ends in a terminal status.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	// Claim the job (PENDING -> RUNNING) with optimistic locking.
	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		w.logger.Error("Failed to claim job",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to claim job: %w", err)
	}

	// Parse the stored request. A payload that does not even unmarshal
	// is terminal; requeueing cannot fix it.
	var req pipeline.JobRequest
	if err := json.Unmarshal([]byte(job.Payload), &req); err != nil {
		w.logger.Error("Failed to parse job request",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		_ = w.storage.UpdateJobStatus(ctx, job.JobID, domain.JobStatusFailed, nil,
			fmt.Sprintf("Invalid request JSON: %s", err.Error()))
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	jobTimeout := w.jobTimeout
	if job.TimeoutSeconds > 0 {
		jobTimeout = time.Duration(job.TimeoutSeconds) * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	// The pipeline never panics or leaks partial output; whatever
	// happens, resp is a complete envelope.
	resp := w.runner.Process(jobCtx, req)

	if resp.Failed() {
		return w.finishFailed(ctx, job, resp)
	}

	if updateErr := w.storage.UpdateJobStatus(ctx, job.JobID, domain.JobStatusCompleted, &resp, ""); updateErr != nil {
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.JobID),
			slog.String("error", updateErr.Error()),
		)
		// The video was produced; ACK anyway rather than regenerate.
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.String("mode", resp.Mode),
		slog.Int("num_frames", resp.NumFrames),
	)

	return nil
}

// finishFailed records the error envelope and decides retryability.
func (w *Worker) finishFailed(ctx context.Context, job *domain.Job, resp pipeline.JobResponse) error {
	w.logger.Error("Job failed",
		slog.String("job_id", job.JobID),
		slog.String("error", resp.Error),
	)

	// Validation failures are deterministic: the same request will be
	// rejected again, so the message must not be requeued.
	switch resp.FailureKind {
	case pipeline.KindEngineFailure, pipeline.KindEncodingFailure:
		if job.RetryCount < job.MaxRetries {
			w.logger.Info("Job will be retried",
				slog.String("job_id", job.JobID),
				slog.Int("retry_count", job.RetryCount),
				slog.Int("max_retries", job.MaxRetries),
			)
			// The row goes back to PENDING so the requeued message can
			// claim it again.
			if requeueErr := w.storage.RequeueJob(ctx, job.JobID, resp.Error); requeueErr != nil {
				w.logger.Error("Failed to requeue job",
					slog.String("job_id", job.JobID),
					slog.String("error", requeueErr.Error()),
				)
			}
			return domain.NewRetryableError(errors.New(resp.Error))
		}
		w.logger.Warn("Job exceeded max retries",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
		)
		w.markFailed(ctx, job.JobID, resp)
		return fmt.Errorf("%w: %s", domain.ErrMaxRetriesExceeded, resp.Error)
	default:
		w.markFailed(ctx, job.JobID, resp)
		return fmt.Errorf("%w: %s", domain.ErrJobRejected, resp.Error)
	}
}

func (w *Worker) markFailed(ctx context.Context, jobID string, resp pipeline.JobResponse) {
	if updateErr := w.storage.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, &resp, resp.Error); updateErr != nil {
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", jobID),
			slog.String("error", updateErr.Error()),
		)
	}
}

// sendJobHeartbeat periodically refreshes the job's heartbeat timestamp
// while generation is in flight.
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
