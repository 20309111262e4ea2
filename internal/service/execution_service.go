package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/admatrix/api/internal/client"
	"github.com/admatrix/api/internal/matrix"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/store"
)

// Broadcaster pushes job transitions to subscribed clients. The websocket
// hub implements it; tests pass nil.
type Broadcaster interface {
	BroadcastJobUpdate(job *model.RenderJob)
	BroadcastGenerationComplete(generationID string, completed, failed int)
}

// ValidationError carries the blocking issues that stopped an execution.
type ValidationError struct {
	Issues []model.ValidationIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d combinations failed validation", len(e.Issues))
}

func (e *ValidationError) Unwrap() error { return model.ErrValidationFailed }

// ExecutionService owns the render job lifecycle: it creates generations,
// fans submissions out through the dispatcher, and funnels every provider
// status report — webhook or poll — through one guarded update path.
type ExecutionService struct {
	store             store.Store
	provider          client.RenderProvider
	dispatcher        Dispatcher
	hub               Broadcaster
	policy            matrix.RequiredPolicy
	processingTimeout time.Duration
}

func NewExecutionService(st store.Store, provider client.RenderProvider, dispatcher Dispatcher, hub Broadcaster, policy matrix.RequiredPolicy, processingTimeout time.Duration) *ExecutionService {
	return &ExecutionService{
		store:             st,
		provider:          provider,
		dispatcher:        dispatcher,
		hub:               hub,
		policy:            policy,
		processingTimeout: processingTimeout,
	}
}

// SetDispatcher wires the submission path. The inline dispatcher needs the
// service to exist first, so wiring happens in two steps.
func (s *ExecutionService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// StartExecution snapshots the matrix into one pending job per combination
// and dispatches the submissions. All-or-nothing: any blocking validation
// issue creates zero jobs. With an idempotency key a repeated call returns
// the generation created by the first call.
func (s *ExecutionService) StartExecution(ctx context.Context, userID, matrixID string, req *model.StartExecutionRequest) (*model.StartExecutionResponse, error) {
	m, err := s.store.LoadMatrix(ctx, matrixID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("matrix %s: %w", matrixID, model.ErrForbidden)
	}

	combos := matrix.Generate(m)
	if len(combos) == 0 {
		return nil, &ValidationError{Issues: []model.ValidationIssue{{
			Code:    model.IssueMissingRequiredAsset,
			Message: "matrix has no rows",
		}}}
	}
	issues := matrix.Validate(combos, s.policy)
	if model.HasBlocking(issues) {
		return nil, &ValidationError{Issues: blockingOnly(issues)}
	}

	tpl, err := s.provider.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", req.TemplateID, err)
	}
	// Fail fast on slot mismatches before any job exists.
	for _, combo := range combos {
		if _, err := model.BuildModifications(tpl, combo); err != nil {
			return nil, &ValidationError{Issues: []model.ValidationIssue{{
				Code:    model.IssueMissingRequiredAsset,
				RowID:   combo.RowID,
				Message: err.Error(),
			}}}
		}
	}

	generationID := req.IdempotencyKey
	if generationID == "" {
		generationID = uuid.New().String()
	}

	claimed, err := s.store.ClaimGeneration(ctx, generationID, matrixID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim generation: %w", err)
	}
	if !claimed {
		jobs, err := s.store.LoadJobsByGeneration(ctx, generationID)
		if err != nil {
			return nil, fmt.Errorf("generation %s claimed but unreadable: %w", generationID, err)
		}
		return &model.StartExecutionResponse{
			GenerationID: generationID,
			MatrixID:     matrixID,
			JobCount:     len(jobs),
			Existing:     true,
			CreatedAt:    jobs[0].CreatedAt,
		}, nil
	}

	now := time.Now()
	jobs := make([]*model.RenderJob, 0, len(combos))
	for i, combo := range combos {
		jobs = append(jobs, &model.RenderJob{
			ID:             uuid.New().String(),
			MatrixID:       matrixID,
			GenerationID:   generationID,
			VariationIndex: i + 1,
			TemplateID:     req.TemplateID,
			Combination:    combo,
			Status:         model.JobStatusPending,
			Attempt:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	// Persist the whole batch before any submission leaves the process.
	for _, job := range jobs {
		if err := s.store.SaveJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}
		if err := s.store.SetCurrentJob(ctx, generationID, job.VariationIndex, job.ID); err != nil {
			return nil, fmt.Errorf("failed to index job: %w", err)
		}
	}

	for _, job := range jobs {
		if err := s.dispatcher.DispatchSubmit(ctx, job); err != nil {
			// No silent pending state: a job we cannot dispatch is failed.
			log.Printf("Dispatch failed for job %s: %v", job.ID, err)
			s.failJob(ctx, job.ID, fmt.Sprintf("dispatch failed: %v", err), model.JobStatusPending)
		}
	}

	return &model.StartExecutionResponse{
		GenerationID: generationID,
		MatrixID:     matrixID,
		JobCount:     len(jobs),
		CreatedAt:    now,
	}, nil
}

// SubmitJob performs the provider submission for one pending job. Called from
// the asynq worker (or the inline dispatcher). Safe to re-deliver: a job no
// longer pending is skipped.
func (s *ExecutionService) SubmitJob(ctx context.Context, jobID string) error {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending {
		log.Printf("Job %s already %s, skipping submission", jobID, job.Status)
		return nil
	}

	tpl, err := s.provider.GetTemplate(ctx, job.TemplateID)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("template fetch failed: %v", err), model.JobStatusPending)
		return nil
	}
	mods, err := model.BuildModifications(tpl, job.Combination)
	if err != nil {
		s.failJob(ctx, jobID, err.Error(), model.JobStatusPending)
		return nil
	}

	resp, err := s.provider.Submit(ctx, job.TemplateID, mods)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("submission failed: %v", err), model.JobStatusPending)
		return nil
	}

	updated, err := s.store.UpdateJobStatus(ctx, jobID, store.JobStatusChange{
		Status:        model.JobStatusProcessing,
		ProviderJobID: resp.ID,
		ExpectedPrior: model.JobStatusPending,
	})
	if err != nil {
		// Lost the race (e.g. user cancelled mid-submit). The provider job
		// runs to completion unobserved; its late webhook will be discarded.
		log.Printf("Job %s: submission acknowledged but state moved on: %v", jobID, err)
		return nil
	}
	s.broadcast(updated)
	return nil
}

// ApplyProviderUpdate is the single entry point for provider status reports,
// shared by the webhook handler and the reconcile sweep. Unknown provider ids
// and non-monotonic updates are logged and discarded — never an error to the
// caller.
func (s *ExecutionService) ApplyProviderUpdate(ctx context.Context, upd model.StatusUpdate) {
	job, err := s.store.LoadJobByProviderID(ctx, upd.ProviderJobID)
	if err != nil {
		log.Printf("Provider update for unknown job %s discarded", upd.ProviderJobID)
		return
	}
	if !upd.Status.Terminal() {
		return
	}
	// A retried slot orphans the old provider job; drop its late reports.
	current, err := s.currentJobForSlot(ctx, job)
	if err == nil && current != job.ID {
		log.Printf("Provider update for superseded job %s discarded", job.ID)
		return
	}

	updated, err := s.store.UpdateJobStatus(ctx, job.ID, store.JobStatusChange{
		Status:       upd.Status,
		OutputURL:    upd.OutputURL,
		ErrorMessage: upd.ErrorMessage,
	})
	if err != nil {
		if errors.Is(err, model.ErrStaleUpdate) || errors.Is(err, model.ErrStatusConflict) {
			log.Printf("Stale provider update for job %s discarded: %v", job.ID, err)
			return
		}
		log.Printf("Failed to apply provider update for job %s: %v", job.ID, err)
		return
	}
	s.broadcast(updated)
	s.checkGenerationDone(ctx, updated.GenerationID)
}

// ReconcileSweep polls the provider for every processing job. Transient fetch
// errors are left for the next sweep; only provider-reported failure or the
// processing timeout terminates a job.
func (s *ExecutionService) ReconcileSweep(ctx context.Context) error {
	jobs, err := s.store.ListProcessingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list processing jobs: %w", err)
	}

	for _, job := range jobs {
		if s.processingTimeout > 0 && time.Since(job.UpdatedAt) > s.processingTimeout {
			log.Printf("Job %s exceeded processing timeout, failing", job.ID)
			s.failJob(ctx, job.ID, fmt.Sprintf("render timed out after %s", s.processingTimeout), model.JobStatusProcessing)
			s.checkGenerationDone(ctx, job.GenerationID)
			continue
		}

		status, err := s.provider.GetStatus(ctx, job.ProviderJobID)
		if err != nil {
			log.Printf("Status poll for job %s failed, retrying next sweep: %v", job.ID, err)
			continue
		}

		s.ApplyProviderUpdate(ctx, model.StatusUpdate{
			ProviderJobID: job.ProviderJobID,
			Status:        client.MapProviderStatus(status.Status),
			OutputURL:     status.OutputURL,
			ErrorMessage:  status.Error,
		})
	}
	return nil
}

// Retry re-runs a failed variation. The old job record stays untouched for
// audit; a fresh job takes over the (generation, variation) slot.
func (s *ExecutionService) Retry(ctx context.Context, userID, jobID string) (*model.RenderJob, error) {
	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusFailed {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, model.ErrInvalidState)
	}

	now := time.Now()
	fresh := &model.RenderJob{
		ID:             uuid.New().String(),
		MatrixID:       job.MatrixID,
		GenerationID:   job.GenerationID,
		VariationIndex: job.VariationIndex,
		TemplateID:     job.TemplateID,
		Combination:    job.Combination,
		Status:         model.JobStatusPending,
		Attempt:        job.Attempt + 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveJob(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save retry job: %w", err)
	}
	if err := s.store.SetCurrentJob(ctx, fresh.GenerationID, fresh.VariationIndex, fresh.ID); err != nil {
		return nil, fmt.Errorf("failed to index retry job: %w", err)
	}
	if err := s.dispatcher.DispatchSubmit(ctx, fresh); err != nil {
		log.Printf("Dispatch failed for retry job %s: %v", fresh.ID, err)
		s.failJob(ctx, fresh.ID, fmt.Sprintf("dispatch failed: %v", err), model.JobStatusPending)
	}
	return fresh, nil
}

// Cancel aborts a pending or processing job. The local record fails
// immediately; the provider abort is best effort.
func (s *ExecutionService) Cancel(ctx context.Context, userID, jobID string) (*model.RenderJob, error) {
	job, err := s.loadOwnedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, model.ErrInvalidState)
	}

	updated, err := s.store.UpdateJobStatus(ctx, jobID, store.JobStatusChange{
		Status:        model.JobStatusFailed,
		ErrorMessage:  "cancelled by user",
		ExpectedPrior: job.Status,
	})
	if err != nil {
		return nil, err
	}
	if job.ProviderJobID != "" {
		if err := s.provider.Cancel(ctx, job.ProviderJobID); err != nil {
			log.Printf("Provider cancel for job %s failed (ignored): %v", jobID, err)
		}
	}
	s.broadcast(updated)
	s.checkGenerationDone(ctx, updated.GenerationID)
	return updated, nil
}

// GenerationStatus returns the current job of every variation slot.
func (s *ExecutionService) GenerationStatus(ctx context.Context, userID, generationID string) (*model.GenerationStatusResponse, error) {
	jobs, err := s.store.LoadJobsByGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadOwnedJob(ctx, userID, jobs[0].ID); err != nil {
		return nil, err
	}
	done := true
	for _, job := range jobs {
		if !job.Status.Terminal() {
			done = false
			break
		}
	}
	return &model.GenerationStatusResponse{
		GenerationID: generationID,
		Jobs:         jobs,
		Done:         done,
	}, nil
}

func (s *ExecutionService) failJob(ctx context.Context, jobID, errMsg string, expectedPrior model.JobStatus) {
	updated, err := s.store.UpdateJobStatus(ctx, jobID, store.JobStatusChange{
		Status:        model.JobStatusFailed,
		ErrorMessage:  errMsg,
		ExpectedPrior: expectedPrior,
	})
	if err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
		return
	}
	s.broadcast(updated)
}

func (s *ExecutionService) broadcast(job *model.RenderJob) {
	if s.hub != nil {
		s.hub.BroadcastJobUpdate(job)
	}
}

func (s *ExecutionService) checkGenerationDone(ctx context.Context, generationID string) {
	if s.hub == nil {
		return
	}
	jobs, err := s.store.LoadJobsByGeneration(ctx, generationID)
	if err != nil {
		return
	}
	completed, failed := 0, 0
	for _, job := range jobs {
		switch job.Status {
		case model.JobStatusCompleted:
			completed++
		case model.JobStatusFailed:
			failed++
		default:
			return
		}
	}
	s.hub.BroadcastGenerationComplete(generationID, completed, failed)
}

func (s *ExecutionService) currentJobForSlot(ctx context.Context, job *model.RenderJob) (string, error) {
	jobs, err := s.store.LoadJobsByGeneration(ctx, job.GenerationID)
	if err != nil {
		return "", err
	}
	for _, j := range jobs {
		if j.VariationIndex == job.VariationIndex {
			return j.ID, nil
		}
	}
	return "", fmt.Errorf("slot %d: %w", job.VariationIndex, model.ErrNotFound)
}

func (s *ExecutionService) loadOwnedJob(ctx context.Context, userID, jobID string) (*model.RenderJob, error) {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.LoadMatrix(ctx, job.MatrixID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("job %s: %w", jobID, model.ErrForbidden)
	}
	return job, nil
}

func blockingOnly(issues []model.ValidationIssue) []model.ValidationIssue {
	var out []model.ValidationIssue
	for _, is := range issues {
		if is.Blocking() {
			out = append(out, is)
		}
	}
	return out
}
