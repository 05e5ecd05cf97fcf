// ABOUTME: Bounded priority-ordered queue of pending analysis jobs
// ABOUTME: Immediate QueueFull backpressure on enqueue, blocking dequeue with shutdown

package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 100

var (
	// ErrQueueFull is the backpressure signal returned by Enqueue when the
	// queue is at capacity. It is expected under load, not a bug; the
	// orchestrator converts it per the fail-open/fail-closed policy.
	ErrQueueFull = errors.New("scan queue full")

	// ErrQueueClosed is returned by Enqueue after shutdown.
	ErrQueueClosed = errors.New("scan queue closed")

	// ErrCancelled is delivered for jobs still queued at shutdown.
	ErrCancelled = errors.New("scan job cancelled")
)

// Outcome is what a job's completion handle eventually carries: either a
// verdict or a terminal error (cancellation, oversize rejection).
type Outcome struct {
	Verdict *types.Verdict
	Err     error
}

// ScanJob wraps a ScanRequest with its completion handle and queue
// metadata. The queue owns it until a worker dequeues it; the worker owns
// it for the duration of execution.
type ScanJob struct {
	Job        *types.Job
	Request    *types.ScanRequest
	EnqueuedAt time.Time

	deliverOnce sync.Once
	result      chan Outcome
}

// NewScanJob creates a job wrapper with an unresolved completion handle.
func NewScanJob(req *types.ScanRequest, job *types.Job) *ScanJob {
	return &ScanJob{
		Job:     job,
		Request: req,
		result:  make(chan Outcome, 1),
	}
}

// Deliver resolves the completion handle exactly once. Later calls are
// dropped, so a job-level timeout and a late tier completion cannot race
// into a double delivery.
func (j *ScanJob) Deliver(out Outcome) {
	j.deliverOnce.Do(func() {
		j.result <- out
	})
}

// Result returns the channel the completion outcome arrives on. It is
// fulfilled from a worker goroutine; callers must not assume thread
// affinity.
func (j *ScanJob) Result() <-chan Outcome {
	return j.result
}

// ScanQueue is a bounded queue ordered priority-first with FIFO within the
// same priority class. Enqueue never blocks; Dequeue blocks until an item
// is available or the queue shuts down.
type ScanQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	classes  [types.PriorityClasses][]*ScanJob
	size     int
	capacity int
	closed   bool
}

// NewScanQueue creates a queue with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewScanQueue(capacity int) *ScanQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &ScanQueue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a job, returning ErrQueueFull immediately at capacity.
func (q *ScanQueue) Enqueue(j *ScanJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.size >= q.capacity {
		return ErrQueueFull
	}

	p := j.Request.Priority
	if p < 0 || p >= types.PriorityClasses {
		p = types.PriorityLow
	}
	j.EnqueuedAt = time.Now().UTC()
	q.classes[p] = append(q.classes[p], j)
	q.size++
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the highest-priority job, blocking while the
// queue is empty. It returns ok=false once the queue is closed; jobs still
// queued at that point are handed out by Drain for cancellation, not to
// workers.
func (q *ScanQueue) Dequeue() (*ScanJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.closed {
		return nil, false
	}

	for p := range q.classes {
		if len(q.classes[p]) == 0 {
			continue
		}
		j := q.classes[p][0]
		q.classes[p][0] = nil
		q.classes[p] = q.classes[p][1:]
		q.size--
		return j, true
	}
	return nil, false
}

// Close shuts the queue down and wakes all blocked Dequeue callers.
func (q *ScanQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}

// Drain returns all jobs still queued after Close, in priority order.
func (q *ScanQueue) Drain() []*ScanJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*ScanJob
	for p := range q.classes {
		out = append(out, q.classes[p]...)
		q.classes[p] = nil
	}
	q.size = 0
	return out
}

// Len returns the number of queued jobs.
func (q *ScanQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the configured bound.
func (q *ScanQueue) Capacity() int {
	return q.capacity
}
