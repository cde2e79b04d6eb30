package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Runner owns the background goroutine of every in-flight job. Submission
// stays fire-and-forget for the caller, but each task keeps a cancel handle
// so shutdown can stop background work instead of leaking it.
type Runner struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels map[string]context.CancelFunc
}

func NewRunner() *Runner {
	return &Runner{cancels: make(map[string]context.CancelFunc)}
}

// Launch starts task on its own goroutine. The task context is detached
// from the caller's (the submitting HTTP request ends long before the job
// does) but is cancelled by Cancel or Shutdown.
func (r *Runner) Launch(ctx context.Context, jobID string, task func(ctx context.Context)) {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.cancels[jobID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.forget(jobID)
		defer cancel()
		task(taskCtx)
	}()
}

// Cancel stops a single job's task if it is still running.
func (r *Runner) Cancel(jobID string) {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown cancels every in-flight task and waits for them to finish or for
// ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "runner shutdown timed out with tasks still running")
		return ctx.Err()
	}
}

func (r *Runner) forget(jobID string) {
	r.mu.Lock()
	delete(r.cancels, jobID)
	r.mu.Unlock()
}
