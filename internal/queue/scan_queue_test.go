// ABOUTME: Tests for the bounded priority scan queue
// ABOUTME: Validates backpressure, priority ordering, FIFO within class, shutdown

package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func jobWithSize(t *testing.T, name string, size int) *ScanJob {
	t.Helper()
	req := types.NewScanRequest(make([]byte, size), name, "application/octet-stream", "https://example.com")
	return NewScanJob(req, types.NewJob(req, req.Fingerprint()))
}

func TestScanQueue_EnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(10)
	j := jobWithSize(t, "a.bin", 100)

	if err := q.Enqueue(j); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}

	got, ok := q.Dequeue()
	if !ok {
		t.Fatal("Dequeue() ok = false")
	}
	if got != j {
		t.Error("Dequeue() returned a different job")
	}
	if got.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not stamped on enqueue")
	}
}

func TestScanQueue_QueueFull(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(2)

	if err := q.Enqueue(jobWithSize(t, "a", 1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(jobWithSize(t, "b", 1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Third enqueue must fail immediately, not block.
	start := time.Now()
	err := q.Enqueue(jobWithSize(t, "c", 1))
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() error = %v, want ErrQueueFull", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Enqueue() blocked instead of returning immediately")
	}
}

func TestScanQueue_PriorityOrdering(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(10)

	large := jobWithSize(t, "large", 8<<20)
	small1 := jobWithSize(t, "small1", 100)
	small2 := jobWithSize(t, "small2", 100)
	medium := jobWithSize(t, "medium", 1<<20)

	for _, j := range []*ScanJob{large, small1, medium, small2} {
		if err := q.Enqueue(j); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	// Smaller inputs dequeue first; FIFO within the same class.
	want := []*ScanJob{small1, small2, medium, large}
	for i, wj := range want {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() #%d ok = false", i)
		}
		if got != wj {
			t.Errorf("Dequeue() #%d = %s, want %s", i, got.Request.Filename, wj.Request.Filename)
		}
	}
}

func TestScanQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(10)
	j := jobWithSize(t, "late", 1)

	done := make(chan *ScanJob, 1)
	go func() {
		got, ok := q.Dequeue()
		if ok {
			done <- got
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Enqueue(j); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case got := <-done:
		if got != j {
			t.Error("blocked Dequeue() returned wrong job")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue() did not wake after Enqueue()")
	}
}

func TestScanQueue_CloseWakesWaiters(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(10)

	done := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, ok := q.Dequeue()
			done <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	for i := 0; i < 2; i++ {
		select {
		case ok := <-done:
			if ok {
				t.Error("Dequeue() ok = true after Close()")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Dequeue() still blocked after Close()")
		}
	}

	if err := q.Enqueue(jobWithSize(t, "x", 1)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close() error = %v, want ErrQueueClosed", err)
	}
}

func TestScanQueue_DrainAfterClose(t *testing.T) {
	t.Parallel()

	q := NewScanQueue(10)
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(jobWithSize(t, fmt.Sprintf("f%d", i), 1)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	q.Close()

	// Closed queue hands nothing to workers.
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue() ok = true on closed queue with items")
	}

	drained := q.Drain()
	if len(drained) != 3 {
		t.Errorf("Drain() returned %d jobs, want 3", len(drained))
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Drain(), want 0", q.Len())
	}
}

func TestScanJob_DeliverOnce(t *testing.T) {
	t.Parallel()

	j := jobWithSize(t, "a", 1)
	v := types.NewKnownMaliciousVerdict(j.Request.Fingerprint())

	j.Deliver(Outcome{Verdict: v})
	j.Deliver(Outcome{Err: ErrCancelled}) // dropped

	out := <-j.Result()
	if out.Verdict != v || out.Err != nil {
		t.Error("first delivery not preserved")
	}

	select {
	case <-j.Result():
		t.Error("second delivery observed")
	default:
	}
}
