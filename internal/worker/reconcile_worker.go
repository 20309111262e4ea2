package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/admatrix/api/internal/service"
)

// ReconcileWorker runs the periodic status sweep over processing jobs. The
// scheduler enqueues one render:reconcile task per interval.
type ReconcileWorker struct {
	execution *service.ExecutionService
}

// NewReconcileWorker creates a new reconcile worker.
func NewReconcileWorker(execution *service.ExecutionService) *ReconcileWorker {
	return &ReconcileWorker{execution: execution}
}

// ProcessTask handles one sweep. Sweep-level errors are logged and retried
// on the next interval rather than failing any job.
func (w *ReconcileWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if err := w.execution.ReconcileSweep(ctx); err != nil {
		log.Printf("Reconcile sweep error: %v", err)
	}
	return nil
}
