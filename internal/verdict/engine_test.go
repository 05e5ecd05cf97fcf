// ABOUTME: Tests for the pure verdict fusion engine
// ABOUTME: Validates composite weighting, confidence, thresholds, explanations

package verdict

import (
	"strings"
	"testing"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

var testFP = types.ComputeFingerprint([]byte("engine test"), "")

func cleanResult(tier types.Tier, score float64, subScores ...float64) types.TierResult {
	return types.TierResult{Tier: tier, Score: score, SubScores: subScores}
}

func TestFuse_SingleTier(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	v := e.Fuse(testFP, cleanResult(types.TierFast, 0.1, 0.1, 0.1), nil)

	if v.CompositeScore != 0.1 {
		t.Errorf("CompositeScore = %.2f, want tier1 score 0.1", v.CompositeScore)
	}
	if v.Level != types.ThreatLevelBenign {
		t.Errorf("Level = %v, want benign", v.Level)
	}
	if len(v.Tiers) != 1 {
		t.Errorf("Tiers = %d, want 1", len(v.Tiers))
	}
	// Perfect agreement, but single tier: capped confidence.
	if v.Confidence != DefaultSingleTierCap {
		t.Errorf("Confidence = %.2f, want single-tier cap %.2f", v.Confidence, DefaultSingleTierCap)
	}
}

func TestFuse_TwoTierWeighting(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	t2 := cleanResult(types.TierDeep, 1.0, 1.0)
	v := e.Fuse(testFP, cleanResult(types.TierFast, 0.5, 0.5), &t2)

	want := DefaultTier1Weight*0.5 + DefaultTier2Weight*1.0
	if v.CompositeScore != want {
		t.Errorf("CompositeScore = %.3f, want %.3f", v.CompositeScore, want)
	}
	if len(v.Tiers) != 2 {
		t.Errorf("Tiers = %d, want 2", len(v.Tiers))
	}
}

func TestFuse_AgreementRaisesConfidence(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})

	agree2 := cleanResult(types.TierDeep, 0.8, 0.8)
	agree := e.Fuse(testFP, cleanResult(types.TierFast, 0.8, 0.8), &agree2)

	disagree2 := cleanResult(types.TierDeep, 1.0, 1.0)
	disagree := e.Fuse(testFP, cleanResult(types.TierFast, 0.0, 0.0), &disagree2)

	if agree.Confidence <= disagree.Confidence {
		t.Errorf("agreement confidence %.2f <= disagreement confidence %.2f",
			agree.Confidence, disagree.Confidence)
	}
	if agree.Confidence != 1.0 {
		t.Errorf("perfect two-tier agreement confidence = %.2f, want 1.0", agree.Confidence)
	}
}

func TestFuse_ThreatLevels(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})

	tests := []struct {
		score float64
		want  types.ThreatLevel
	}{
		{0.0, types.ThreatLevelBenign},
		{0.39, types.ThreatLevelBenign},
		{0.4, types.ThreatLevelSuspicious},
		{0.69, types.ThreatLevelSuspicious},
		{0.7, types.ThreatLevelMalicious},
		{1.0, types.ThreatLevelMalicious},
	}

	for _, tt := range tests {
		v := e.Fuse(testFP, cleanResult(types.TierFast, tt.score, tt.score), nil)
		if v.Level != tt.want {
			t.Errorf("score %.2f: Level = %v, want %v", tt.score, v.Level, tt.want)
		}
	}
}

func TestFuse_ConfigurableThresholds(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{LowThreshold: 0.1, HighThreshold: 0.2})
	v := e.Fuse(testFP, cleanResult(types.TierFast, 0.15, 0.15), nil)

	if v.Level != types.ThreatLevelSuspicious {
		t.Errorf("Level = %v, want suspicious with custom thresholds", v.Level)
	}
}

func TestFuse_DegradedTierLowersConfidence(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})

	clean := e.Fuse(testFP, cleanResult(types.TierFast, 0.5, 0.5), nil)

	timedOut := types.TierResult{
		Tier: types.TierFast, Score: 0.5, SubScores: []float64{0.5},
		TimedOut: true, ErrKind: types.ErrorKindTimeout,
	}
	degraded := e.Fuse(testFP, timedOut, nil)

	if degraded.Confidence >= clean.Confidence {
		t.Errorf("degraded confidence %.2f >= clean confidence %.2f", degraded.Confidence, clean.Confidence)
	}
}

func TestFuse_FaultNeverPropagates(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	fault := types.NewFaultResult(types.TierFast, "sandbox runtime error", 0)

	v := e.Fuse(testFP, fault, nil)
	if v == nil {
		t.Fatal("Fuse() returned nil for faulted tier")
	}
	if v.CompositeScore != types.NeutralScore {
		t.Errorf("CompositeScore = %.2f, want neutral", v.CompositeScore)
	}

	found := false
	for _, line := range v.Explanation {
		if strings.Contains(line, "fault") {
			found = true
		}
	}
	if !found {
		t.Errorf("Explanation = %v, want fault mention", v.Explanation)
	}
}

func TestFuse_ExplanationMentionsIndicatorsAndThreshold(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	t1 := types.TierResult{
		Tier: types.TierFast, Score: 0.9, SubScores: []float64{1.0, 0.3},
		Indicators: []string{"powershell-encoded-command", "remote-thread-injection"},
	}

	v := e.Fuse(testFP, t1, nil)

	joined := strings.Join(v.Explanation, "\n")
	for _, want := range []string{"powershell-encoded-command", "remote-thread-injection", "malicious threshold"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Explanation missing %q:\n%s", want, joined)
		}
	}
}

func TestFuse_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	t2 := cleanResult(types.TierDeep, 0.6, 0.55, 0.65)

	first := e.Fuse(testFP, cleanResult(types.TierFast, 0.45, 0.4, 0.5), &t2)
	for i := 0; i < 10; i++ {
		v := e.Fuse(testFP, cleanResult(types.TierFast, 0.45, 0.4, 0.5), &t2)
		if v.CompositeScore != first.CompositeScore || v.Confidence != first.Confidence || v.Level != first.Level {
			t.Fatal("Fuse() not deterministic across runs")
		}
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.Tier1Weight+cfg.Tier2Weight != 1.0 {
		t.Errorf("tier weights sum to %.2f, want 1.0", cfg.Tier1Weight+cfg.Tier2Weight)
	}
	if cfg.HighThreshold <= cfg.LowThreshold {
		t.Error("HighThreshold <= LowThreshold after defaulting")
	}
}
