package pool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunExecutesAllTasks(t *testing.T) {
	wp := NewWorkerPool(4)
	wp.Start()
	defer wp.Stop()

	var count int64
	tasks := make([]func(), 20)
	for i := range tasks {
		tasks[i] = func() { atomic.AddInt64(&count, 1) }
	}
	wp.Run(tasks)

	if count != 20 {
		t.Fatalf("expected 20 tasks to run, got %d", count)
	}
}

func TestWorkerPoolZeroOrNegativeSizeDefaultsToOne(t *testing.T) {
	wp := NewWorkerPool(0)
	if wp.workers != 1 {
		t.Fatalf("expected worker count to default to 1, got %d", wp.workers)
	}
	wp = NewWorkerPool(-5)
	if wp.workers != 1 {
		t.Fatalf("expected worker count to default to 1 for negative input, got %d", wp.workers)
	}
}

func TestWorkerPoolStopIsIdempotent(t *testing.T) {
	wp := NewWorkerPool(2)
	wp.Start()
	wp.Stop()
	done := make(chan struct{})
	go func() {
		wp.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second Stop call did not return promptly")
	}
}

func TestBufferPoolGetSizedReturnsAtLeastRequestedCapacity(t *testing.T) {
	bp := NewBufferPool(2, 1024)
	buf := bp.GetSized(512)
	if len(buf) != 512 {
		t.Fatalf("GetSized(512) length = %d, want 512", len(buf))
	}

	big := bp.GetSized(4096)
	if len(big) != 4096 {
		t.Fatalf("GetSized(4096) length = %d, want 4096", len(big))
	}
}

func TestBufferPoolPutSizedRejectsMismatchedCapacity(t *testing.T) {
	bp := NewBufferPool(1, 64)
	mismatched := make([]byte, 32)
	bp.PutSized(mismatched) // should be a silent no-op, not a panic
	stats := bp.GetStats()
	if stats.Size != 64 {
		t.Fatalf("expected pool size to remain 64, got %d", stats.Size)
	}
}

func TestBufferPoolGetStatsTracksAllocations(t *testing.T) {
	bp := NewBufferPool(0, 128)
	_ = bp.GetSized(128)
	stats := bp.GetStats()
	if stats.Allocated < 1 {
		t.Fatalf("expected at least 1 tracked allocation, got %d", stats.Allocated)
	}
}
