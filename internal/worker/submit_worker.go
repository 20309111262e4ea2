package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/admatrix/api/internal/service"
)

// SubmitWorker pushes pending jobs to the render provider.
type SubmitWorker struct {
	execution *service.ExecutionService
}

// NewSubmitWorker creates a new submit worker.
func NewSubmitWorker(execution *service.ExecutionService) *SubmitWorker {
	return &SubmitWorker{execution: execution}
}

// ProcessTask handles one render:submit task. Provider failures are written
// into the job record by the service; only infrastructure errors bubble up
// to asynq for retry.
func (w *SubmitWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.SubmitTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return w.execution.SubmitJob(ctx, payload.JobID)
}
