// ABOUTME: Pipeline metrics collection for observability
// ABOUTME: Atomic counters plus job latency percentile snapshots

package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// maxLatencySamples bounds the latency window so snapshots stay cheap.
const maxLatencySamples = 4096

// MetricsSnapshot contains a point-in-time snapshot of pipeline counters.
type MetricsSnapshot struct {
	// Submissions accepted by the orchestrator.
	Submissions int64

	// First-level (in-memory LRU) cache hits.
	CacheHits int64

	// Second-level (persistent store) hits.
	StoreHits int64

	// Known-malicious index short-circuits.
	KnownBadHits int64

	// Tier invocation counts.
	Tier1Runs int64
	Tier2Runs int64

	// Tier aborts: deadlines and resource budgets.
	TierTimeouts int64

	// Isolated analysis faults (panics, sandbox errors).
	Faults int64

	// Explicit rejections and backpressure events.
	OversizeRejected int64
	QueueFull        int64

	// Delivered verdicts by level.
	VerdictsBenign     int64
	VerdictsSuspicious int64
	VerdictsMalicious  int64

	// Degraded (fail-open/fail-closed) deliveries.
	Degraded int64

	// Jobs currently being analyzed.
	ActiveJobs int64

	// Timestamp of snapshot.
	Timestamp time.Time
}

// String returns a human-readable representation.
func (s MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"submissions=%d cache=%d store=%d knownbad=%d tier1=%d tier2=%d timeouts=%d faults=%d oversize=%d queuefull=%d verdicts=%d/%d/%d degraded=%d active=%d",
		s.Submissions, s.CacheHits, s.StoreHits, s.KnownBadHits,
		s.Tier1Runs, s.Tier2Runs, s.TierTimeouts, s.Faults,
		s.OversizeRejected, s.QueueFull,
		s.VerdictsBenign, s.VerdictsSuspicious, s.VerdictsMalicious,
		s.Degraded, s.ActiveJobs,
	)
}

// LatencyPercentiles contains the job latency distribution.
type LatencyPercentiles struct {
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration
}

// PipelineMetrics collects counters across the orchestrator and workers.
// All methods are safe for concurrent use.
type PipelineMetrics struct {
	submissions      atomic.Int64
	cacheHits        atomic.Int64
	storeHits        atomic.Int64
	knownBadHits     atomic.Int64
	tier1Runs        atomic.Int64
	tier2Runs        atomic.Int64
	tierTimeouts     atomic.Int64
	faults           atomic.Int64
	oversizeRejected atomic.Int64
	queueFull        atomic.Int64
	benign           atomic.Int64
	suspicious       atomic.Int64
	malicious        atomic.Int64
	degraded         atomic.Int64
	activeJobs       atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

// NewPipelineMetrics creates an empty metrics collector.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{}
}

// RecordSubmission counts an accepted submission.
func (m *PipelineMetrics) RecordSubmission() { m.submissions.Add(1) }

// RecordCacheHit counts a first-level cache hit.
func (m *PipelineMetrics) RecordCacheHit() { m.cacheHits.Add(1) }

// RecordStoreHit counts a persistent-store hit.
func (m *PipelineMetrics) RecordStoreHit() { m.storeHits.Add(1) }

// RecordKnownBadHit counts a known-malicious index short-circuit.
func (m *PipelineMetrics) RecordKnownBadHit() { m.knownBadHits.Add(1) }

// RecordTierRun counts a tier invocation.
func (m *PipelineMetrics) RecordTierRun(deep bool) {
	if deep {
		m.tier2Runs.Add(1)
	} else {
		m.tier1Runs.Add(1)
	}
}

// RecordTierTimeout counts a deadline or resource-budget abort.
func (m *PipelineMetrics) RecordTierTimeout() { m.tierTimeouts.Add(1) }

// RecordFault counts an isolated analysis fault.
func (m *PipelineMetrics) RecordFault() { m.faults.Add(1) }

// RecordOversizeRejected counts an oversized-input rejection.
func (m *PipelineMetrics) RecordOversizeRejected() { m.oversizeRejected.Add(1) }

// RecordQueueFull counts a backpressure event.
func (m *PipelineMetrics) RecordQueueFull() { m.queueFull.Add(1) }

// RecordVerdict counts a delivered verdict by level.
func (m *PipelineMetrics) RecordVerdict(level types.ThreatLevel, degradedDelivery bool) {
	switch level {
	case types.ThreatLevelBenign:
		m.benign.Add(1)
	case types.ThreatLevelSuspicious:
		m.suspicious.Add(1)
	case types.ThreatLevelMalicious:
		m.malicious.Add(1)
	}
	if degradedDelivery {
		m.degraded.Add(1)
	}
}

// JobStarted marks a job entering analysis.
func (m *PipelineMetrics) JobStarted() { m.activeJobs.Add(1) }

// JobFinished marks a job leaving analysis and records its latency.
func (m *PipelineMetrics) JobFinished(elapsed time.Duration) {
	m.activeJobs.Add(-1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) >= maxLatencySamples {
		// Drop the oldest half to keep amortized cost low.
		copy(m.latencies, m.latencies[len(m.latencies)/2:])
		m.latencies = m.latencies[:len(m.latencies)-len(m.latencies)/2]
	}
	m.latencies = append(m.latencies, elapsed)
}

// Snapshot returns a point-in-time view of all counters.
func (m *PipelineMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Submissions:        m.submissions.Load(),
		CacheHits:          m.cacheHits.Load(),
		StoreHits:          m.storeHits.Load(),
		KnownBadHits:       m.knownBadHits.Load(),
		Tier1Runs:          m.tier1Runs.Load(),
		Tier2Runs:          m.tier2Runs.Load(),
		TierTimeouts:       m.tierTimeouts.Load(),
		Faults:             m.faults.Load(),
		OversizeRejected:   m.oversizeRejected.Load(),
		QueueFull:          m.queueFull.Load(),
		VerdictsBenign:     m.benign.Load(),
		VerdictsSuspicious: m.suspicious.Load(),
		VerdictsMalicious:  m.malicious.Load(),
		Degraded:           m.degraded.Load(),
		ActiveJobs:         m.activeJobs.Load(),
		Timestamp:          time.Now().UTC(),
	}
}

// Latencies returns the job latency distribution.
func (m *PipelineMetrics) Latencies() LatencyPercentiles {
	m.mu.Lock()
	samples := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()

	if len(samples) == 0 {
		return LatencyPercentiles{}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	pick := func(q float64) time.Duration {
		idx := int(q * float64(len(samples)-1))
		return samples[idx]
	}

	return LatencyPercentiles{
		P50: pick(0.50),
		P90: pick(0.90),
		P95: pick(0.95),
		P99: pick(0.99),
		Max: samples[len(samples)-1],
	}
}
