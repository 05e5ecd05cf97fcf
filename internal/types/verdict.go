// ABOUTME: Verdict type representing the fused outcome of an analysis
// ABOUTME: Immutable once constructed, which is what makes caching it safe

package types

import (
	"fmt"
	"time"
)

// ThreatLevel classifies the analyzed content for the enforcement layer.
type ThreatLevel int

const (
	// ThreatLevelBenign indicates no meaningful threat signal.
	ThreatLevelBenign ThreatLevel = iota
	// ThreatLevelSuspicious indicates inconclusive but elevated signal.
	ThreatLevelSuspicious
	// ThreatLevelMalicious indicates strong threat signal.
	ThreatLevelMalicious
)

// String returns the string representation of the threat level.
func (l ThreatLevel) String() string {
	switch l {
	case ThreatLevelBenign:
		return "benign"
	case ThreatLevelSuspicious:
		return "suspicious"
	case ThreatLevelMalicious:
		return "malicious"
	default:
		return "unknown"
	}
}

// Verdict is the cacheable outcome of an analysis. Once constructed it is
// never mutated; cache updates always insert a new Verdict rather than
// editing one visible to concurrent readers.
type Verdict struct {
	// Fingerprint of the content this verdict applies to.
	Fingerprint Fingerprint `json:"fingerprint"`

	// Fused score in [0,1].
	CompositeScore float64 `json:"composite_score"`

	// Agreement-based confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Classification against the configured thresholds.
	Level ThreatLevel `json:"threat_level"`

	// Ordered human-readable reasons for the classification.
	Explanation []string `json:"explanation,omitempty"`

	// Results of the tiers that contributed to this verdict.
	Tiers []TierResult `json:"contributing_tiers,omitempty"`

	// Degraded marks verdicts produced without analysis (backpressure or
	// unrecoverable faults, resolved per fail-open/fail-closed policy).
	// Degraded verdicts are never cached; they reflect system state, not
	// the content.
	Degraded bool `json:"degraded,omitempty"`

	// Construction timestamp.
	ComputedAt time.Time `json:"computed_at"`
}

// IsMalicious returns true if the verdict classifies the content as malicious.
func (v *Verdict) IsMalicious() bool {
	return v.Level == ThreatLevelMalicious
}

// Summary returns a one-line form for logs and CLI output.
func (v *Verdict) Summary() string {
	return fmt.Sprintf("%s (score=%.2f confidence=%.2f)", v.Level, v.CompositeScore, v.Confidence)
}

// NewKnownMaliciousVerdict builds the maximum-confidence verdict used when
// a fingerprint is confirmed present in the known-malicious index.
func NewKnownMaliciousVerdict(fp Fingerprint) *Verdict {
	return &Verdict{
		Fingerprint:    fp,
		CompositeScore: 1.0,
		Confidence:     1.0,
		Level:          ThreatLevelMalicious,
		Explanation:    []string{"fingerprint present in known-malicious index"},
		ComputedAt:     time.Now().UTC(),
	}
}

// NewFailOpenVerdict builds the permissive degraded verdict delivered when
// analysis could not run and policy is fail-open.
func NewFailOpenVerdict(fp Fingerprint, reason string) *Verdict {
	return &Verdict{
		Fingerprint:    fp,
		CompositeScore: NeutralScore,
		Confidence:     0,
		Level:          ThreatLevelBenign,
		Explanation:    []string{"analysis unavailable: " + reason, "failing open per policy"},
		Degraded:       true,
		ComputedAt:     time.Now().UTC(),
	}
}

// NewFailClosedVerdict builds the blocking degraded verdict delivered when
// analysis could not run and policy is fail-closed.
func NewFailClosedVerdict(fp Fingerprint, reason string) *Verdict {
	return &Verdict{
		Fingerprint:    fp,
		CompositeScore: NeutralScore,
		Confidence:     0,
		Level:          ThreatLevelMalicious,
		Explanation:    []string{"analysis unavailable: " + reason, "failing closed per policy"},
		Degraded:       true,
		ComputedAt:     time.Now().UTC(),
	}
}
