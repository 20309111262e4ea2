// Package store persists matrices and render jobs. The Redis implementation
// is the production path; the memory implementation backs development and
// tests when Redis is unavailable.
package store

import (
	"context"

	"github.com/admatrix/api/internal/model"
)

// JobStatusChange describes a single guarded transition of a job record.
// ExpectedPrior, when non-empty, must match the stored status or the update
// is rejected with ErrStatusConflict. Independently of ExpectedPrior, an
// update that is less final than the stored status (or that would rewrite a
// terminal state) is rejected with ErrStaleUpdate.
type JobStatusChange struct {
	Status        model.JobStatus
	ProviderJobID string // set on submission acknowledge, ignored when empty
	OutputURL     string
	ErrorMessage  string
	ExpectedPrior model.JobStatus
}

// Store is the durable repository consumed by the engine.
type Store interface {
	SaveMatrix(ctx context.Context, m *model.Matrix) error
	LoadMatrix(ctx context.Context, id string) (*model.Matrix, error)
	DeleteMatrix(ctx context.Context, id string) error

	SaveJob(ctx context.Context, job *model.RenderJob) error
	LoadJob(ctx context.Context, id string) (*model.RenderJob, error)
	// LoadJobsByGeneration returns the current job of every variation slot,
	// ordered by variation index. Superseded (retried) jobs are not included.
	LoadJobsByGeneration(ctx context.Context, generationID string) ([]model.RenderJob, error)
	// SetCurrentJob points a generation's variation slot at a job id. Prior
	// slot holders stay persisted for audit.
	SetCurrentJob(ctx context.Context, generationID string, variationIndex int, jobID string) error
	// ClaimGeneration reserves a generation id. Returns false when the id was
	// already claimed — the idempotent-execution path.
	ClaimGeneration(ctx context.Context, generationID, matrixID string) (bool, error)

	// UpdateJobStatus applies a guarded transition and returns the updated
	// record. Uses optimistic concurrency so a webhook and a poll racing on
	// the same job cannot corrupt state.
	UpdateJobStatus(ctx context.Context, jobID string, change JobStatusChange) (*model.RenderJob, error)

	// LoadJobByProviderID resolves the provider's job id to ours. Returns
	// ErrNotFound for unknown or superseded provider ids.
	LoadJobByProviderID(ctx context.Context, providerJobID string) (*model.RenderJob, error)
	// ListProcessingJobs returns every job currently in processing, for the
	// reconcile sweep.
	ListProcessingJobs(ctx context.Context) ([]model.RenderJob, error)
}

// applyChange mutates a loaded job according to a validated change. Shared by
// both implementations after their respective concurrency checks.
func applyChange(job *model.RenderJob, change JobStatusChange) {
	job.Status = change.Status
	if change.ProviderJobID != "" {
		job.ProviderJobID = change.ProviderJobID
	}
	if change.OutputURL != "" {
		job.OutputURL = change.OutputURL
	}
	if change.ErrorMessage != "" {
		job.ErrorMessage = change.ErrorMessage
	}
}

// checkTransition enforces the expected-prior and monotonicity rules.
func checkTransition(current model.JobStatus, change JobStatusChange) error {
	if change.ExpectedPrior != "" && current != change.ExpectedPrior {
		return model.ErrStatusConflict
	}
	if current.Terminal() && change.Status != current {
		return model.ErrStaleUpdate
	}
	if !change.Status.AtLeastAsFinalAs(current) {
		return model.ErrStaleUpdate
	}
	return nil
}
