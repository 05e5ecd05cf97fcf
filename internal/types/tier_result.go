// ABOUTME: TierResult type for the output of a single analyzer invocation
// ABOUTME: Carries score, sub-scores, indicators, and failure classification

package types

import (
	"time"
)

// Tier identifies one of the two analysis tiers.
type Tier int

const (
	// TierFast is the sandboxed heuristic first-opinion tier.
	TierFast Tier = iota + 1
	// TierDeep is the behavioral second-opinion tier.
	TierDeep
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierFast:
		return "tier1-fast"
	case TierDeep:
		return "tier2-deep"
	default:
		return "unknown"
	}
}

// ErrorKind classifies analyzer failures. All of them degrade to a
// low-confidence input for verdict fusion rather than propagating.
type ErrorKind int

const (
	// ErrorKindNone means the tier completed normally.
	ErrorKindNone ErrorKind = iota
	// ErrorKindTimeout means the tier exceeded its wall-clock deadline.
	ErrorKindTimeout
	// ErrorKindResourceExhausted means the fuel or memory budget was hit.
	ErrorKindResourceExhausted
	// ErrorKindFault means an unexpected failure inside the tier's execution.
	ErrorKindFault
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindResourceExhausted:
		return "resource_exhausted"
	case ErrorKindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// NeutralScore is the score reported when a tier cannot produce evidence.
const NeutralScore = 0.5

// TierResult is the immutable output of one analyzer invocation.
type TierResult struct {
	// Which tier produced this result.
	Tier Tier `json:"tier"`

	// Overall score in [0,1]; higher means more likely malicious.
	Score float64 `json:"score"`

	// Raw sub-scores feeding the confidence calculation (for Tier1:
	// pattern score then statistical score; for Tier2: per-behavior-class
	// scores).
	SubScores []float64 `json:"sub_scores,omitempty"`

	// Names of matched indicators, used for explanation generation.
	Indicators []string `json:"indicators,omitempty"`

	// Wall-clock time spent inside the analyzer.
	ExecutionTime time.Duration `json:"execution_time"`

	// TimedOut is set when a deadline or resource budget aborted the run.
	// Partial signal computed before the abort is preserved in Score.
	TimedOut bool `json:"timed_out,omitempty"`

	// Failure classification; ErrorKindNone for clean completions.
	ErrKind ErrorKind `json:"error_kind,omitempty"`

	// Human-readable failure detail, set when ErrKind != ErrorKindNone.
	Error string `json:"error,omitempty"`
}

// Failed returns true if the tier did not complete normally.
func (r TierResult) Failed() bool {
	return r.ErrKind != ErrorKindNone
}

// Conclusive returns true if the result carries usable evidence (a clean
// run, or a timeout that preserved partial signal).
func (r TierResult) Conclusive() bool {
	return r.ErrKind == ErrorKindNone
}

// NewFaultResult builds the neutral result reported when a tier's execution
// faulted. The worker survives; the score carries no evidence either way.
func NewFaultResult(tier Tier, detail string, elapsed time.Duration) TierResult {
	return TierResult{
		Tier:          tier,
		Score:         NeutralScore,
		ExecutionTime: elapsed,
		ErrKind:       ErrorKindFault,
		Error:         detail,
	}
}
