package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/admatrix/api/internal/model"
)

const (
	matrixKeyPrefix    = "matrix:"
	jobKeyPrefix       = "renderjob:"
	generationPrefix   = "generation:"
	providerIdxPrefix  = "providerjob:"
	processingSetKey   = "renderjobs:processing"
	casRetries         = 5
	recordTTL          = 30 * 24 * time.Hour
)

// RedisStore keeps records as JSON blobs, one key per entity, with a hash per
// generation mapping variation index to the current job id.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) SaveMatrix(ctx context.Context, m *model.Matrix) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, matrixKeyPrefix+m.ID, data, 0).Err()
}

func (s *RedisStore) LoadMatrix(ctx context.Context, id string) (*model.Matrix, error) {
	data, err := s.rdb.Get(ctx, matrixKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("matrix %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	var m model.Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *RedisStore) DeleteMatrix(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, matrixKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("matrix %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job *model.RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, recordTTL)
	pipe.RPush(ctx, generationPrefix+job.GenerationID+":history", job.ID)
	if job.ProviderJobID != "" {
		pipe.Set(ctx, providerIdxPrefix+job.ProviderJobID, job.ID, recordTTL)
	}
	if job.Status == model.JobStatusProcessing {
		pipe.SAdd(ctx, processingSetKey, job.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LoadJob(ctx context.Context, id string) (*model.RenderJob, error) {
	return s.loadJob(ctx, s.rdb, id)
}

func (s *RedisStore) loadJob(ctx context.Context, c redis.Cmdable, id string) (*model.RenderJob, error) {
	data, err := c.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) LoadJobsByGeneration(ctx context.Context, generationID string) ([]model.RenderJob, error) {
	slots, err := s.rdb.HGetAll(ctx, generationPrefix+generationID).Result()
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("generation %s: %w", generationID, model.ErrNotFound)
	}

	type slot struct {
		index int
		jobID string
	}
	ordered := make([]slot, 0, len(slots))
	for idx, jobID := range slots {
		i, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}
		ordered = append(ordered, slot{index: i, jobID: jobID})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	jobs := make([]model.RenderJob, 0, len(ordered))
	for _, sl := range ordered {
		job, err := s.LoadJob(ctx, sl.jobID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (s *RedisStore) SetCurrentJob(ctx context.Context, generationID string, variationIndex int, jobID string) error {
	return s.rdb.HSet(ctx, generationPrefix+generationID, strconv.Itoa(variationIndex), jobID).Err()
}

func (s *RedisStore) ClaimGeneration(ctx context.Context, generationID, matrixID string) (bool, error) {
	return s.rdb.SetNX(ctx, generationPrefix+"claim:"+generationID, matrixID, recordTTL).Result()
}

// UpdateJobStatus runs a WATCH-guarded read-check-write so that webhook and
// poll updates racing on the same job serialize cleanly. Retries a handful of
// times on transaction conflicts before giving up.
func (s *RedisStore) UpdateJobStatus(ctx context.Context, jobID string, change JobStatusChange) (*model.RenderJob, error) {
	key := jobKeyPrefix + jobID
	var updated *model.RenderJob

	txn := func(tx *redis.Tx) error {
		job, err := s.loadJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := checkTransition(job.Status, change); err != nil {
			return err
		}

		applyChange(job, change)
		job.UpdatedAt = time.Now()

		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, recordTTL)
			if change.ProviderJobID != "" {
				pipe.Set(ctx, providerIdxPrefix+change.ProviderJobID, job.ID, recordTTL)
			}
			if job.Status == model.JobStatusProcessing {
				pipe.SAdd(ctx, processingSetKey, job.ID)
			} else if job.Status.Terminal() {
				pipe.SRem(ctx, processingSetKey, job.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = job
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, model.ErrStatusConflict
}

func (s *RedisStore) LoadJobByProviderID(ctx context.Context, providerJobID string) (*model.RenderJob, error) {
	jobID, err := s.rdb.Get(ctx, providerIdxPrefix+providerJobID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("provider job %s: %w", providerJobID, model.ErrNotFound)
		}
		return nil, err
	}
	return s.LoadJob(ctx, jobID)
}

func (s *RedisStore) ListProcessingJobs(ctx context.Context) ([]model.RenderJob, error) {
	ids, err := s.rdb.SMembers(ctx, processingSetKey).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]model.RenderJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.LoadJob(ctx, id)
		if err != nil {
			// Expired record; drop it from the sweep set.
			s.rdb.SRem(ctx, processingSetKey, id)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
