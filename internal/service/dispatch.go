package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/admatrix/api/internal/model"
)

const (
	TaskTypeSubmit    = "render:submit"
	TaskTypeReconcile = "render:reconcile"
)

// SubmitTaskPayload is the body of a render:submit task.
type SubmitTaskPayload struct {
	JobID string `json:"jobId"`
}

// Dispatcher hands a pending job off for asynchronous submission.
type Dispatcher interface {
	DispatchSubmit(ctx context.Context, job *model.RenderJob) error
}

// AsynqDispatcher enqueues one submit task per job. The task id pins each
// (generation, variation, job) so a double enqueue is dropped by the queue.
type AsynqDispatcher struct {
	client    *asynq.Client
	retention time.Duration
}

func NewAsynqDispatcher(client *asynq.Client, retention time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, retention: retention}
}

func (d *AsynqDispatcher) DispatchSubmit(_ context.Context, job *model.RenderJob) error {
	payload, err := json.Marshal(SubmitTaskPayload{JobID: job.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := asynq.NewTask(TaskTypeSubmit, payload)
	_, err = d.client.Enqueue(task,
		asynq.Queue("render"),
		asynq.TaskID(fmt.Sprintf("submit:%s:%d:%s", job.GenerationID, job.VariationIndex, job.ID)),
		asynq.MaxRetry(3),
		asynq.Retention(d.retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already queued — the idempotent path.
		return nil
	}
	return err
}

// InlineDispatcher submits in-process through a bounded worker pool. Used
// when Redis/asynq is not available (development, tests); mirrors the
// fallback behavior the rest of the stack has for unconfigured externals.
type InlineDispatcher struct {
	submitter interface {
		SubmitJob(ctx context.Context, jobID string) error
	}
	sem chan struct{}
}

func NewInlineDispatcher(submitter interface {
	SubmitJob(ctx context.Context, jobID string) error
}, concurrency int) *InlineDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &InlineDispatcher{
		submitter: submitter,
		sem:       make(chan struct{}, concurrency),
	}
}

func (d *InlineDispatcher) DispatchSubmit(_ context.Context, job *model.RenderJob) error {
	d.sem <- struct{}{}
	go func(jobID string) {
		defer func() { <-d.sem }()
		// Detached from the request context: submission outlives the call.
		if err := d.submitter.SubmitJob(context.Background(), jobID); err != nil {
			log.Printf("Inline submission for job %s failed: %v", jobID, err)
		}
	}(job.ID)
	return nil
}
