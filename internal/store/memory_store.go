package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/admatrix/api/internal/model"
)

// MemoryStore is the in-process fallback used when Redis is not configured,
// and by tests. Records are deep-copied through JSON so callers never share
// memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	matrices    map[string][]byte
	jobs        map[string][]byte
	slots       map[string]map[int]string // generationID → variationIndex → jobID
	claims      map[string]string
	providerIdx map[string]string
	processing  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matrices:    make(map[string][]byte),
		jobs:        make(map[string][]byte),
		slots:       make(map[string]map[int]string),
		claims:      make(map[string]string),
		providerIdx: make(map[string]string),
		processing:  make(map[string]bool),
	}
}

func (s *MemoryStore) SaveMatrix(_ context.Context, m *model.Matrix) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices[m.ID] = data
	return nil
}

func (s *MemoryStore) LoadMatrix(_ context.Context, id string) (*model.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.matrices[id]
	if !ok {
		return nil, fmt.Errorf("matrix %s: %w", id, model.ErrNotFound)
	}
	var m model.Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemoryStore) DeleteMatrix(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matrices[id]; !ok {
		return fmt.Errorf("matrix %s: %w", id, model.ErrNotFound)
	}
	delete(s.matrices, id)
	return nil
}

func (s *MemoryStore) SaveJob(_ context.Context, job *model.RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = data
	if job.ProviderJobID != "" {
		s.providerIdx[job.ProviderJobID] = job.ID
	}
	if job.Status == model.JobStatusProcessing {
		s.processing[job.ID] = true
	}
	return nil
}

func (s *MemoryStore) LoadJob(_ context.Context, id string) (*model.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadJobLocked(id)
}

func (s *MemoryStore) loadJobLocked(id string) (*model.RenderJob, error) {
	data, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *MemoryStore) LoadJobsByGeneration(_ context.Context, generationID string) ([]model.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, ok := s.slots[generationID]
	if !ok || len(slots) == 0 {
		return nil, fmt.Errorf("generation %s: %w", generationID, model.ErrNotFound)
	}
	indexes := make([]int, 0, len(slots))
	for idx := range slots {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	jobs := make([]model.RenderJob, 0, len(indexes))
	for _, idx := range indexes {
		job, err := s.loadJobLocked(slots[idx])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (s *MemoryStore) SetCurrentJob(_ context.Context, generationID string, variationIndex int, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[generationID] == nil {
		s.slots[generationID] = make(map[int]string)
	}
	s.slots[generationID][variationIndex] = jobID
	return nil
}

func (s *MemoryStore) ClaimGeneration(_ context.Context, generationID, matrixID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[generationID]; ok {
		return false, nil
	}
	s.claims[generationID] = matrixID
	return true, nil
}

func (s *MemoryStore) UpdateJobStatus(_ context.Context, jobID string, change JobStatusChange) (*model.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.loadJobLocked(jobID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(job.Status, change); err != nil {
		return nil, err
	}

	applyChange(job, change)
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	s.jobs[job.ID] = data
	if change.ProviderJobID != "" {
		s.providerIdx[change.ProviderJobID] = job.ID
	}
	if job.Status == model.JobStatusProcessing {
		s.processing[job.ID] = true
	} else if job.Status.Terminal() {
		delete(s.processing, job.ID)
	}
	return job, nil
}

func (s *MemoryStore) LoadJobByProviderID(_ context.Context, providerJobID string) (*model.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.providerIdx[providerJobID]
	if !ok {
		return nil, fmt.Errorf("provider job %s: %w", providerJobID, model.ErrNotFound)
	}
	return s.loadJobLocked(jobID)
}

func (s *MemoryStore) ListProcessingJobs(_ context.Context) ([]model.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]model.RenderJob, 0, len(s.processing))
	for id := range s.processing {
		job, err := s.loadJobLocked(id)
		if err != nil {
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
