// ABOUTME: Fixed-size worker pool pulling jobs from the priority scan queue
// ABOUTME: Panic isolation, graceful shutdown with cancellation of queued jobs

package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/queue"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// DefaultWorkerCount is used when no worker count is configured.
const DefaultWorkerCount = 4

// jobExecutor runs one dequeued job to completion, always delivering an
// outcome on its handle. It must not panic; the pool still guards against
// it so one poisoned input cannot take a worker down.
type jobExecutor func(ctx context.Context, sj *queue.ScanJob)

// WorkerPool owns a fixed set of goroutines draining the scan queue. The
// pool size never changes at runtime; concurrency is bounded at startup
// and backpressure happens at the queue, not here.
type WorkerPool struct {
	queue *queue.ScanQueue
	exec  jobExecutor
	log   *slog.Logger
	count int

	wg       sync.WaitGroup
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorkerPool creates a pool of count workers over the given queue.
func NewWorkerPool(count int, q *queue.ScanQueue, exec jobExecutor, log *slog.Logger) *WorkerPool {
	if count <= 0 {
		count = DefaultWorkerCount
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:  q,
		exec:   exec,
		log:    log,
		count:  count,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	p.log.Info("worker pool started", slog.Int("workers", p.count))
}

// Stop closes the queue, waits for in-flight jobs to finish, then delivers
// a cancellation outcome for every job still queued. In-flight analysis is
// never interrupted; its verdict still lands in the cache.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.queue.Close()
		p.wg.Wait()
		p.cancel()

		drained := p.queue.Drain()
		for _, sj := range drained {
			if err := sj.Job.Cancel(); err != nil {
				p.log.Warn("cancelling drained job",
					slog.String("job_id", sj.Job.ID),
					slog.String("error", err.Error()))
			}
			sj.Deliver(queue.Outcome{Err: queue.ErrCancelled})
		}
		if len(drained) > 0 {
			p.log.Info("cancelled queued jobs at shutdown", slog.Int("count", len(drained)))
		}
	})
}

// Size returns the fixed worker count.
func (p *WorkerPool) Size() int {
	return p.count
}

func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()

	for {
		sj, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.runGuarded(sj)
	}
}

// runGuarded executes one job with panic isolation. A panicking executor
// fails the job and keeps the worker alive.
func (p *WorkerPool) runGuarded(sj *queue.ScanJob) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker recovered from panic",
				slog.String("job_id", sj.Job.ID),
				slog.String("fingerprint", sj.Job.Fingerprint.Short()),
				slog.Any("panic", r))
			if sj.Job.Status == types.JobStatusPending || sj.Job.Status == types.JobStatusRunning {
				_ = sj.Job.Fail("analysis fault")
			}
			sj.Deliver(queue.Outcome{Err: observability.NewErrorContext(
				observability.CodeAnalysisFault,
				observability.CategoryInternal,
				"worker_execute",
			)})
		}
	}()

	p.exec(p.ctx, sj)
}
