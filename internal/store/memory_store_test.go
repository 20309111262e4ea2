package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admatrix/api/internal/model"
)

func pendingJob(id, gen string, idx int) *model.RenderJob {
	now := time.Now()
	return &model.RenderJob{
		ID:             id,
		MatrixID:       "matrix-1",
		GenerationID:   gen,
		VariationIndex: idx,
		TemplateID:     "tpl-1",
		Status:         model.JobStatusPending,
		Attempt:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestUpdateJobStatus_PendingToProcessing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveJob(ctx, pendingJob("job-1", "gen-1", 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{
		Status:        model.JobStatusProcessing,
		ProviderJobID: "prov-1",
		ExpectedPrior: model.JobStatusPending,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != model.JobStatusProcessing {
		t.Errorf("expected processing, got %s", updated.Status)
	}
	if updated.ProviderJobID != "prov-1" {
		t.Errorf("expected provider id set, got %q", updated.ProviderJobID)
	}

	// The provider index and the processing set must track the transition.
	byProv, err := s.LoadJobByProviderID(ctx, "prov-1")
	if err != nil || byProv.ID != "job-1" {
		t.Errorf("provider index lookup failed: %v %v", byProv, err)
	}
	processing, err := s.ListProcessingJobs(ctx)
	if err != nil || len(processing) != 1 {
		t.Errorf("expected 1 processing job, got %d (%v)", len(processing), err)
	}
}

func TestUpdateJobStatus_ExpectedPriorMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveJob(ctx, pendingJob("job-1", "gen-1", 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	_, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{
		Status:        model.JobStatusFailed,
		ExpectedPrior: model.JobStatusProcessing,
	})
	if !errors.Is(err, model.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestUpdateJobStatus_TerminalIsImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveJob(ctx, pendingJob("job-1", "gen-1", 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusCompleted, OutputURL: "https://out/1.png"}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// A late failure report must not rewrite the completed record.
	_, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusFailed, ErrorMessage: "late"})
	if !errors.Is(err, model.ErrStaleUpdate) {
		t.Errorf("expected ErrStaleUpdate, got %v", err)
	}

	job, err := s.LoadJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if job.Status != model.JobStatusCompleted || job.OutputURL != "https://out/1.png" {
		t.Errorf("terminal record was mutated: %+v", job)
	}
}

func TestUpdateJobStatus_RegressionRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveJob(ctx, pendingJob("job-1", "gen-1", 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusProcessing, ProviderJobID: "prov-1"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// A stale poll reporting pending must not move the job backwards.
	_, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusPending})
	if !errors.Is(err, model.ErrStaleUpdate) {
		t.Errorf("expected ErrStaleUpdate, got %v", err)
	}
}

func TestUpdateJobStatus_TerminalReapplyAllowed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveJob(ctx, pendingJob("job-1", "gen-1", 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusCompleted}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// Webhook and poll may both report completion; the repeat is a no-op.
	if _, err := s.UpdateJobStatus(ctx, "job-1", JobStatusChange{Status: model.JobStatusCompleted}); err != nil {
		t.Errorf("re-applying the same terminal status should succeed, got %v", err)
	}
}

func TestClaimGeneration_OnlyFirstWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	claimed, err := s.ClaimGeneration(ctx, "gen-1", "matrix-1")
	if err != nil || !claimed {
		t.Fatalf("first claim should win: %v %v", claimed, err)
	}
	claimed, err = s.ClaimGeneration(ctx, "gen-1", "matrix-1")
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if claimed {
		t.Error("second claim should lose")
	}
}

func TestLoadJobsByGeneration_CurrentSlotHolderOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := pendingJob("job-1", "gen-1", 1)
	if err := s.SaveJob(ctx, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SetCurrentJob(ctx, "gen-1", 1, "job-1"); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	// A retry takes over the slot; the old record stays loadable by id.
	retry := pendingJob("job-2", "gen-1", 1)
	retry.Attempt = 2
	if err := s.SaveJob(ctx, retry); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SetCurrentJob(ctx, "gen-1", 1, "job-2"); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	jobs, err := s.LoadJobsByGeneration(ctx, "gen-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-2" {
		t.Errorf("expected only the retry job, got %+v", jobs)
	}
	if _, err := s.LoadJob(ctx, "job-1"); err != nil {
		t.Errorf("superseded job should stay loadable for audit: %v", err)
	}
}

func TestLoadJobsByGeneration_OrderedByVariation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, idx := range []int{3, 1, 2} {
		job := pendingJob("job-"+string(rune('0'+idx)), "gen-1", idx)
		if err := s.SaveJob(ctx, job); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := s.SetCurrentJob(ctx, "gen-1", idx, job.ID); err != nil {
			t.Fatalf("index failed: %v", err)
		}
	}

	jobs, err := s.LoadJobsByGeneration(ctx, "gen-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	for i, job := range jobs {
		if job.VariationIndex != i+1 {
			t.Errorf("position %d holds variation %d", i, job.VariationIndex)
		}
	}
}

func TestLoadJobsByGeneration_UnknownGeneration(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.LoadJobsByGeneration(context.Background(), "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMatrixRoundTrip_IsolatedCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m := &model.Matrix{
		ID:     "matrix-1",
		UserID: "user-1",
		Rows:   []model.Row{{ID: "row-1", Platform: model.PlatformFacebook, Format: "feed"}},
		Cells:  map[string]model.Cell{},
	}
	if err := s.SaveMatrix(ctx, m); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := s.LoadMatrix(ctx, "matrix-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	loaded.Rows[0].Format = "mutated"

	again, err := s.LoadMatrix(ctx, "matrix-1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Rows[0].Format != "feed" {
		t.Error("loaded matrix shares memory with the store")
	}

	if err := s.DeleteMatrix(ctx, "matrix-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.LoadMatrix(ctx, "matrix-1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
