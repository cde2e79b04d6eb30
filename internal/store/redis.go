package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pulsedash.app/harvester/internal/model"
)

const jobKeyPrefix = "harvester:job:"

// RedisStore is the optional durable backing for the job registry. Records
// survive process restarts but in-flight jobs do not resume; the pipeline
// remains single-process (see the concurrency model). The read-modify-write
// in Update is guarded by a store-level mutex, which is sufficient because
// exactly one orchestrator task owns any given job.
type RedisStore struct {
	mu     sync.Mutex
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, jobKeyPrefix+job.ID, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx job: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	mutate(job)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set job: %w", err)
	}
	return nil
}
