// ABOUTME: Pure verdict-scoring engine fusing tier results into a Verdict
// ABOUTME: Weighted composite, variance-based agreement confidence, thresholds

package verdict

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Fusion defaults. All of them are tunables, not semantics.
const (
	DefaultTier1Weight = 0.6
	DefaultTier2Weight = 0.4

	// Composite-score thresholds: below Low is benign, at or above High is
	// malicious, between is suspicious.
	DefaultLowThreshold  = 0.4
	DefaultHighThreshold = 0.7

	// DefaultSingleTierCap scales confidence when only one tier
	// contributed, reflecting reduced evidence.
	DefaultSingleTierCap = 0.6

	// degradedPenalty scales confidence per tier that timed out, ran out
	// of budget, or faulted.
	degradedPenalty = 0.5
)

// Config holds the fusion tunables. Zero values take the defaults above.
type Config struct {
	Tier1Weight   float64 `yaml:"tier1_weight"`
	Tier2Weight   float64 `yaml:"tier2_weight"`
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
	SingleTierCap float64 `yaml:"single_tier_cap"`
}

func (c Config) withDefaults() Config {
	if c.Tier1Weight <= 0 || c.Tier2Weight <= 0 || c.Tier1Weight+c.Tier2Weight != 1.0 {
		c.Tier1Weight = DefaultTier1Weight
		c.Tier2Weight = DefaultTier2Weight
	}
	if c.LowThreshold <= 0 {
		c.LowThreshold = DefaultLowThreshold
	}
	if c.HighThreshold <= 0 || c.HighThreshold <= c.LowThreshold {
		c.HighThreshold = DefaultHighThreshold
	}
	if c.SingleTierCap <= 0 || c.SingleTierCap > 1 {
		c.SingleTierCap = DefaultSingleTierCap
	}
	return c
}

// Engine combines tier outputs into verdicts. It performs no I/O and is
// fully deterministic given its inputs, which is what makes cached
// verdicts trustworthy.
type Engine struct {
	cfg Config
}

// NewEngine creates a verdict engine with the given tunables.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Fuse combines the tier results into a verdict. tier2 is nil when the
// deep tier did not run. Fuse never fails: degraded tier inputs lower
// confidence instead of propagating.
func (e *Engine) Fuse(fp types.Fingerprint, tier1 types.TierResult, tier2 *types.TierResult) *types.Verdict {
	cfg := e.cfg

	var composite float64
	tiers := []types.TierResult{tier1}
	if tier2 != nil {
		composite = cfg.Tier1Weight*tier1.Score + cfg.Tier2Weight*tier2.Score
		tiers = append(tiers, *tier2)
	} else {
		composite = tier1.Score
	}
	composite = clamp01(composite)

	confidence := e.confidence(tier1, tier2)
	level := e.classify(composite)

	return &types.Verdict{
		Fingerprint:    fp,
		CompositeScore: composite,
		Confidence:     confidence,
		Level:          level,
		Explanation:    e.explain(composite, level, tiers),
		Tiers:          tiers,
		ComputedAt:     time.Now().UTC(),
	}
}

// confidence measures agreement between the contributing sub-scores as
// 1 − normalized variance (variance of values in [0,1] maxes at 0.25).
// Single-tier verdicts are capped lower, and every degraded tier halves
// the result.
func (e *Engine) confidence(tier1 types.TierResult, tier2 *types.TierResult) float64 {
	inputs := append([]float64(nil), tier1.SubScores...)
	inputs = append(inputs, tier1.Score)
	if tier2 != nil {
		inputs = append(inputs, tier2.SubScores...)
		inputs = append(inputs, tier2.Score)
	}

	conf := 1.0 - math.Min(1.0, 4.0*variance(inputs))

	if tier2 == nil {
		conf *= e.cfg.SingleTierCap
	}
	if tier1.TimedOut || tier1.Failed() {
		conf *= degradedPenalty
	}
	if tier2 != nil && (tier2.TimedOut || tier2.Failed()) {
		conf *= degradedPenalty
	}

	return clamp01(conf)
}

func (e *Engine) classify(composite float64) types.ThreatLevel {
	switch {
	case composite < e.cfg.LowThreshold:
		return types.ThreatLevelBenign
	case composite >= e.cfg.HighThreshold:
		return types.ThreatLevelMalicious
	default:
		return types.ThreatLevelSuspicious
	}
}

// explain builds the ordered human-readable reason list: per-tier indicator
// summaries first, then which threshold the composite crossed.
func (e *Engine) explain(composite float64, level types.ThreatLevel, tiers []types.TierResult) []string {
	var out []string

	for _, tr := range tiers {
		switch {
		case tr.ErrKind == types.ErrorKindFault:
			out = append(out, fmt.Sprintf("%s: analysis fault, treated as neutral evidence", tr.Tier))
		case tr.TimedOut:
			out = append(out, fmt.Sprintf("%s: aborted at resource limit (%s), partial evidence only", tr.Tier, tr.ErrKind))
		}

		if len(tr.Indicators) > 0 {
			out = append(out, fmt.Sprintf("%s: matched %s (score %.2f)", tr.Tier, strings.Join(tr.Indicators, ", "), tr.Score))
		} else if tr.ErrKind == types.ErrorKindNone {
			out = append(out, fmt.Sprintf("%s: no indicators matched (score %.2f)", tr.Tier, tr.Score))
		}
	}

	switch level {
	case types.ThreatLevelMalicious:
		out = append(out, fmt.Sprintf("composite score %.2f at or above malicious threshold %.2f", composite, e.cfg.HighThreshold))
	case types.ThreatLevelSuspicious:
		out = append(out, fmt.Sprintf("composite score %.2f between thresholds %.2f and %.2f", composite, e.cfg.LowThreshold, e.cfg.HighThreshold))
	default:
		out = append(out, fmt.Sprintf("composite score %.2f below benign threshold %.2f", composite, e.cfg.LowThreshold))
	}

	return out
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var v float64
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return v / float64(len(xs))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
