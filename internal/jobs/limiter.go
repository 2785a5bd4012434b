package jobs

// limiter.go implements concurrency control for background jobs.
//
// The limiter uses a semaphore pattern to restrict parallel jobs to a
// configurable maximum, preventing resource exhaustion under load. When
// all slots are occupied, new requests wait up to maxWait before
// failing with ErrTooManyJobs.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyJobs is returned when all job slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many concurrent jobs, please try again later")

// DefaultMaxConcurrent is the default limit for parallel jobs.
const DefaultMaxConcurrent = 4

// DefaultMaxWait is how long to wait for a slot before rejecting.
const DefaultMaxWait = 30 * time.Second

// Limiter controls concurrent job execution.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter that allows at most maxConcurrent
// simultaneous jobs.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a job slot.
// Returns nil on success, ErrTooManyJobs if the timeout expires.
// The caller MUST call Release() when the job completes (use defer).
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyJobs

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently running jobs.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until all active jobs complete or the context is
// cancelled. Used for graceful shutdown.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}
