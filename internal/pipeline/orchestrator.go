// ABOUTME: Orchestrator coordinating cache, index, queue, tiers, and fusion
// ABOUTME: Single-flight dedup per fingerprint and fail-open/fail-closed policy

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/analyzer"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/cache"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/engine"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/queue"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/verdict"
)

// tracerName identifies pipeline spans. The global provider is a noop
// unless the host enabled tracing.
const tracerName = "hikmaai-sentinel/pipeline"

// Default pipeline sizing.
const (
	DefaultMaxInputSize = 32 << 20
	DefaultJobTimeout   = 5 * time.Second

	// Default tier-1 score band that escalates to deep analysis.
	DefaultGrayZoneLow  = 0.3
	DefaultGrayZoneHigh = 0.7
)

// Config holds orchestrator tunables.
type Config struct {
	// CacheCapacity sizes the in-memory verdict cache.
	CacheCapacity int

	// QueueCapacity bounds the pending scan queue.
	QueueCapacity int

	// WorkerCount is the fixed analysis concurrency.
	WorkerCount int

	// MaxInputSize rejects submissions larger than this, in bytes.
	MaxInputSize int64

	// JobTimeout bounds one job's total wall-clock time across tiers.
	JobTimeout time.Duration

	// GrayZoneLow and GrayZoneHigh bound the tier-1 score band that
	// escalates to the deep tier. Scores inside the band (inclusive)
	// get a second opinion; scores outside it are conclusive alone.
	GrayZoneLow  float64
	GrayZoneHigh float64

	// FailOpen selects the backpressure policy: true delivers benign
	// degraded verdicts when analysis cannot run, false delivers
	// malicious ones.
	FailOpen bool
}

func (c Config) withDefaults() Config {
	if c.MaxInputSize <= 0 {
		c.MaxInputSize = DefaultMaxInputSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.GrayZoneHigh <= 0 {
		c.GrayZoneLow = DefaultGrayZoneLow
		c.GrayZoneHigh = DefaultGrayZoneHigh
	}
	return c
}

// Stats is the orchestrator's observable state, joined from its parts.
type Stats struct {
	Pipeline observability.MetricsSnapshot    `json:"pipeline"`
	Latency  observability.LatencyPercentiles `json:"latency"`
	Cache    cache.Metrics                    `json:"cache"`
	Index    engine.IndexStats                `json:"index"`
	QueueLen int                              `json:"queue_len"`
	QueueCap int                              `json:"queue_cap"`
	Workers  int                              `json:"workers"`
}

// Orchestrator owns the full verdict pipeline: lookup tiers (memory cache,
// known-bad index, persistent store), the bounded priority queue, the
// worker pool running the analysis tiers, and verdict fusion. Concurrent
// submissions of identical content collapse into one analysis.
type Orchestrator struct {
	cfg   Config
	log   *slog.Logger
	store *engine.Engine

	cache   *cache.VerdictCache
	queue   *queue.ScanQueue
	pool    *WorkerPool
	tier1   analyzer.TierAnalyzer
	tier2   analyzer.TierAnalyzer
	fuser   *verdict.Engine
	metrics *observability.PipelineMetrics
	tracer  trace.Tracer

	flight singleflight.Group
}

// New creates an orchestrator over an opened persistence engine and the
// two analysis tiers. Call Start before submitting.
func New(cfg Config, store *engine.Engine, tier1, tier2 analyzer.TierAnalyzer, fuser *verdict.Engine, log *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}

	o := &Orchestrator{
		cfg:     cfg,
		log:     log,
		store:   store,
		cache:   cache.NewVerdictCache(cfg.CacheCapacity),
		queue:   queue.NewScanQueue(cfg.QueueCapacity),
		tier1:   tier1,
		tier2:   tier2,
		fuser:   fuser,
		metrics: observability.NewPipelineMetrics(),
		tracer:  otel.Tracer(tracerName),
	}
	o.pool = NewWorkerPool(cfg.WorkerCount, o.queue, o.runJob, log)
	return o
}

// Start launches the worker pool.
func (o *Orchestrator) Start() {
	o.pool.Start()
	o.log.Info("pipeline started",
		slog.Int("cache_capacity", o.cache.Metrics().Capacity),
		slog.Int("queue_capacity", o.queue.Capacity()),
		slog.Int("workers", o.pool.Size()),
		slog.Bool("fail_open", o.cfg.FailOpen))
}

// Stop drains the pipeline: workers finish their in-flight jobs, queued
// jobs are cancelled, and their submitters unblock with ErrCancelled.
func (o *Orchestrator) Stop() {
	o.pool.Stop()
	o.log.Info("pipeline stopped")
}

// Submit runs the full verdict flow for one request and blocks until a
// verdict or terminal error is available. Identical content submitted
// concurrently shares a single analysis; every caller gets the verdict.
func (o *Orchestrator) Submit(ctx context.Context, req *types.ScanRequest) (*types.Verdict, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.submit", trace.WithAttributes(
		attribute.Int64("request.size", req.Size()),
		attribute.String("request.priority", req.Priority.String()),
	))
	defer span.End()

	o.metrics.RecordSubmission()

	if req.Size() > o.cfg.MaxInputSize {
		o.metrics.RecordOversizeRejected()
		return nil, observability.NewErrorContext(
			observability.CodeOversizedInput,
			observability.CategoryUserError,
			"submit",
		).WithDetails(map[string]any{
			"size":  req.Size(),
			"limit": o.cfg.MaxInputSize,
		})
	}

	fp := req.Fingerprint()
	span.SetAttributes(attribute.String("fingerprint", fp.Short()))

	if v, ok := o.lookup(ctx, fp); ok {
		return v, nil
	}

	// Collapse concurrent submissions of the same fingerprint into one
	// analysis. The flight key is the fingerprint, so filename and origin
	// differences do not defeat deduplication. The flight runs on a
	// context detached from any one caller: a waiter abandoning via its
	// own ctx detaches alone, and the shared analysis still completes and
	// populates the cache for everyone else.
	flightCtx := context.WithoutCancel(ctx)
	ch := o.flight.DoChan(string(fp), func() (any, error) {
		return o.analyze(flightCtx, req, fp)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.Verdict), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MarkMalicious records a fingerprint as confirmed malicious. Future
// submissions of matching content short-circuit to a known-bad verdict.
// Any cached verdict for the fingerprint is invalidated so the stronger
// classification takes effect immediately.
func (o *Orchestrator) MarkMalicious(fp types.Fingerprint) error {
	if err := o.store.Index.Add(fp); err != nil {
		return fmt.Errorf("adding to known-bad index: %w", err)
	}
	o.cache.Invalidate(fp)
	o.log.Info("fingerprint marked malicious", slog.String("fingerprint", fp.Short()))
	return nil
}

// Stats returns a joined snapshot of pipeline state.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Pipeline: o.metrics.Snapshot(),
		Latency:  o.metrics.Latencies(),
		Cache:    o.cache.Metrics(),
		Index:    o.store.Index.Stats(),
		QueueLen: o.queue.Len(),
		QueueCap: o.queue.Capacity(),
		Workers:  o.pool.Size(),
	}
}

// lookup runs the three read-only tiers in cost order: memory cache,
// known-bad index, persistent store. Hits found below the memory cache
// are promoted into it.
func (o *Orchestrator) lookup(ctx context.Context, fp types.Fingerprint) (*types.Verdict, bool) {
	if v, ok := o.cache.Get(fp); ok {
		o.metrics.RecordCacheHit()
		return v, true
	}

	known, err := o.store.Index.Contains(fp)
	if err != nil {
		o.log.Warn("known-bad index lookup failed",
			slog.String("fingerprint", fp.Short()),
			slog.String("error", err.Error()))
	} else if known {
		o.metrics.RecordKnownBadHit()
		v := types.NewKnownMaliciousVerdict(fp)
		o.cache.Put(fp, v)
		return v, true
	}

	v, found, err := o.store.Verdicts.Get(ctx, fp)
	if err != nil {
		o.log.Warn("verdict store lookup failed",
			slog.String("fingerprint", fp.Short()),
			slog.String("error", err.Error()))
		return nil, false
	}
	if found {
		o.metrics.RecordStoreHit()
		o.cache.Put(fp, v)
		return v, true
	}
	return nil, false
}

// analyze enqueues one job and waits for its outcome. Backpressure is
// converted into a degraded policy verdict here, never an error the
// intake layer has to interpret.
func (o *Orchestrator) analyze(ctx context.Context, req *types.ScanRequest, fp types.Fingerprint) (*types.Verdict, error) {
	job := types.NewJob(req, fp)
	if err := o.store.Jobs.Put(ctx, job); err != nil {
		o.log.Warn("persisting job record failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}

	sj := queue.NewScanJob(req, job)
	if err := o.queue.Enqueue(sj); err != nil {
		return o.degradedVerdict(ctx, job, fp, err)
	}

	// Delivery is guaranteed: workers always deliver an outcome, and jobs
	// still queued at shutdown are drained and resolved with ErrCancelled.
	// Caller cancellation is handled per-waiter in Submit, so the shared
	// flight is never torn down by one impatient caller.
	out := <-sj.Result()
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Verdict, nil
}

// degradedVerdict resolves a job that could not be analyzed, per the
// fail-open/fail-closed policy. Degraded verdicts are delivered but never
// cached or persisted; they reflect pipeline state, not the content.
func (o *Orchestrator) degradedVerdict(ctx context.Context, job *types.Job, fp types.Fingerprint, cause error) (*types.Verdict, error) {
	reason := "analysis queue full"
	switch cause {
	case queue.ErrQueueFull:
		o.metrics.RecordQueueFull()
	case queue.ErrQueueClosed:
		reason = "pipeline shutting down"
	default:
		reason = cause.Error()
	}

	var v *types.Verdict
	if o.cfg.FailOpen {
		v = types.NewFailOpenVerdict(fp, reason)
	} else {
		v = types.NewFailClosedVerdict(fp, reason)
	}

	if err := job.Fail(reason); err == nil {
		if err := o.store.Jobs.Update(ctx, job); err != nil {
			o.log.Warn("updating failed job record",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
		}
	}

	o.metrics.RecordVerdict(v.Level, true)
	o.log.Warn("delivering degraded verdict",
		slog.String("fingerprint", fp.Short()),
		slog.String("reason", reason),
		slog.String("level", v.Level.String()))
	return v, nil
}

// runJob is the worker executor: tier 1, gray-zone escalation to tier 2,
// fusion, then cache and store writes. It always delivers an outcome.
func (o *Orchestrator) runJob(poolCtx context.Context, sj *queue.ScanJob) {
	start := time.Now()
	o.metrics.JobStarted()
	defer func() {
		o.metrics.JobFinished(time.Since(start))
	}()

	job, req, fp := sj.Job, sj.Request, sj.Job.Fingerprint

	defer func() {
		if r := recover(); r != nil {
			// One poisoned input must not take the worker down. The job
			// resolves to a neutral fault verdict.
			o.metrics.RecordFault()
			o.log.Error("analysis panicked",
				slog.String("job_id", job.ID),
				slog.String("fingerprint", fp.Short()),
				slog.Any("panic", r))

			v := o.fuser.Fuse(fp, types.NewFaultResult(types.TierFast, fmt.Sprintf("panic: %v", r), time.Since(start)), nil)
			_ = job.Fail("analysis fault")
			if err := o.store.Jobs.Update(poolCtx, job); err != nil {
				o.log.Warn("updating faulted job record", slog.String("error", err.Error()))
			}
			// Fault verdicts are cached like any tier-level fault: identical
			// bytes would panic the same way, so re-analysis buys nothing.
			o.cache.Put(fp, v)
			if err := o.store.Verdicts.Put(poolCtx, fp, v); err != nil {
				o.log.Warn("persisting fault verdict failed",
					slog.String("fingerprint", fp.Short()),
					slog.String("error", err.Error()))
			}
			o.metrics.RecordVerdict(v.Level, false)
			sj.Deliver(queue.Outcome{Verdict: v})
		}
	}()

	if err := job.Start(); err != nil {
		// Cancelled while we were dequeuing it.
		sj.Deliver(queue.Outcome{Err: queue.ErrCancelled})
		return
	}
	if err := o.store.Jobs.Update(poolCtx, job); err != nil {
		o.log.Warn("updating running job record", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithTimeout(poolCtx, o.cfg.JobTimeout)
	defer cancel()
	ctx, jobSpan := o.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("fingerprint", fp.Short()),
	))
	defer jobSpan.End()

	tier1 := o.runTier(ctx, o.tier1, req.Content, false)

	var tier2 *types.TierResult
	if o.shouldEscalate(tier1) {
		t2 := o.runTier(ctx, o.tier2, req.Content, true)
		tier2 = &t2
	}

	_, fuseSpan := o.tracer.Start(ctx, "verdict.fuse")
	v := o.fuser.Fuse(fp, tier1, tier2)
	fuseSpan.SetAttributes(
		attribute.Float64("verdict.score", v.CompositeScore),
		attribute.String("verdict.level", v.Level.String()),
	)
	fuseSpan.End()

	if !v.Degraded {
		o.cache.Put(fp, v)
		if err := o.store.Verdicts.Put(ctx, fp, v); err != nil {
			o.log.Warn("persisting verdict failed",
				slog.String("fingerprint", fp.Short()),
				slog.String("error", err.Error()))
		}
	}

	if err := job.Complete(v); err == nil {
		if err := o.store.Jobs.Update(poolCtx, job); err != nil {
			o.log.Warn("updating completed job record", slog.String("error", err.Error()))
		}
	}

	o.metrics.RecordVerdict(v.Level, v.Degraded)
	o.log.Debug("verdict delivered",
		slog.String("job_id", job.ID),
		slog.String("fingerprint", fp.Short()),
		slog.String("verdict", v.Summary()),
		slog.Duration("elapsed", time.Since(start)))

	sj.Deliver(queue.Outcome{Verdict: v})
}

// shouldEscalate decides whether the deep tier runs: only when the fast
// tier's score lands inside the gray zone (inclusive). Clear scores on
// either side are conclusive on their own.
func (o *Orchestrator) shouldEscalate(tier1 types.TierResult) bool {
	return tier1.Score >= o.cfg.GrayZoneLow && tier1.Score <= o.cfg.GrayZoneHigh
}

// runTier invokes one analyzer under its own span and records tier metrics.
func (o *Orchestrator) runTier(ctx context.Context, tier analyzer.TierAnalyzer, content []byte, deep bool) types.TierResult {
	ctx, span := o.tracer.Start(ctx, tier.Tier().String()+".analyze")
	defer span.End()

	r := tier.Analyze(ctx, content)
	span.SetAttributes(
		attribute.Float64("score", r.Score),
		attribute.Bool("timed_out", r.TimedOut),
		attribute.String("error_kind", r.ErrKind.String()),
	)

	o.metrics.RecordTierRun(deep)
	if r.TimedOut {
		o.metrics.RecordTierTimeout()
	}
	if r.ErrKind == types.ErrorKindFault {
		o.metrics.RecordFault()
	}
	return r
}
