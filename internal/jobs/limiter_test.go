package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	limiter := NewLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}

	limiter.Release()
	limiter.Release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after releases = %d, want 0", got)
	}
}

func TestLimiter_RejectsWhenFull(t *testing.T) {
	limiter := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("Acquire on full limiter: error = %v, want ErrTooManyJobs", err)
	}
}

func TestLimiter_SlotFreedByRelease(t *testing.T) {
	limiter := NewLimiter(1, 2*time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.Release()
	}()

	if err := limiter.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release failed: %v", err)
	}
	limiter.Release()
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := limiter.Acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with cancelled context: error = %v, want context.Canceled", err)
	}
}

func TestLimiter_WaitForDrain(t *testing.T) {
	limiter := NewLimiter(2, time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(drainCtx); err != nil {
		t.Errorf("WaitForDrain failed: %v", err)
	}
}
