package store

import (
	"context"
	"errors"

	"pulsedash.app/harvester/internal/model"
)

var (
	ErrDuplicateJob = errors.New("job id already exists")
	ErrJobNotFound  = errors.New("job not found")
)

// JobStore is the unit of truth for status polling. Exactly one orchestrator
// task owns a job for its lifetime, so mutation is last-writer-wins and no
// optimistic concurrency is provided. Reads are safe from any number of
// concurrent pollers.
type JobStore interface {
	// Create registers a new job. Ids are time-derived so collisions are not
	// expected, but a duplicate id still fails with ErrDuplicateJob.
	Create(ctx context.Context, job *model.Job) error
	// Get returns a copy of the job or ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies mutate to the stored job under the store's lock, or
	// returns ErrJobNotFound.
	Update(ctx context.Context, id string, mutate func(*model.Job)) error
}
