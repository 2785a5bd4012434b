// Package jobs runs reconciliations as observable background tasks.
// A submission is acknowledged immediately with a job id; the job's
// status stays pollable until a retention window after completion, so
// background failures are visible to the client, not just to the logs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	ListKey    string     `json:"listKey"`
	Status     Status     `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type job struct {
	mu   sync.Mutex
	snap Snapshot
	done chan struct{}
}

func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap
}

func (j *job) finish(result any, err error) {
	j.mu.Lock()
	now := time.Now().UTC()
	j.snap.FinishedAt = &now
	if err != nil {
		j.snap.Status = StatusFailed
		j.snap.Error = err.Error()
	} else {
		j.snap.Status = StatusSucceeded
		j.snap.Result = result
	}
	j.mu.Unlock()
	close(j.done)
}

// Runner owns the job table and the concurrency limiter.
type Runner struct {
	limiter   *Limiter
	timeout   time.Duration
	retention time.Duration
	log       *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewRunner wires a runner. Zero durations select defaults.
func NewRunner(maxConcurrent int, maxWait, timeout, retention time.Duration, log *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		limiter:   NewLimiter(maxConcurrent, maxWait),
		timeout:   timeout,
		retention: retention,
		log:       log,
		jobs:      make(map[string]*job),
	}
}

// Start launches fn in the background and returns its job id. It blocks
// only while waiting for a concurrency slot; the work itself runs under
// a detached context bounded by the runner's timeout, so an HTTP client
// going away does not abandon a half-finished reconciliation.
func (r *Runner) Start(ctx context.Context, kind, listKey string, fn func(context.Context) (any, error)) (string, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.NewString()
	j := &job{
		snap: Snapshot{
			ID:        id,
			Kind:      kind,
			ListKey:   listKey,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(context.Background(), r.timeout)

	go func() {
		defer r.limiter.Release()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("panic in job",
					"job_id", id,
					"kind", kind,
					"list", listKey,
					"panic", rec,
				)
				j.finish(nil, fmt.Errorf("internal error: %v", rec))
				r.cleanup(id)
			}
		}()

		result, err := fn(jobCtx)
		if err != nil {
			r.log.Error("job failed", "job_id", id, "kind", kind, "list", listKey, "error", err)
		}
		j.finish(result, err)
		r.cleanup(id)
	}()

	return id, nil
}

// Get returns the current state of a job without blocking.
func (r *Runner) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot(), true
}

// Wait blocks until the job completes or the context is cancelled.
func (r *Runner) Wait(ctx context.Context, id string) (Snapshot, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("job not found: %s", id)
	}

	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// WaitForDrain blocks until every running job completes.
func (r *Runner) WaitForDrain(ctx context.Context) error {
	return r.limiter.WaitForDrain(ctx)
}

// cleanup drops a finished job from the table after the retention
// window so clients have time to poll the final state.
func (r *Runner) cleanup(id string) {
	time.AfterFunc(r.retention, func() {
		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
	})
}
