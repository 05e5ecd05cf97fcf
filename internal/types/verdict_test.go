// ABOUTME: Tests for Verdict construction helpers and threat levels
// ABOUTME: Validates degraded fail-open/fail-closed verdict shapes

package types

import (
	"testing"
)

func TestThreatLevel_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level ThreatLevel
		want  string
	}{
		{ThreatLevelBenign, "benign"},
		{ThreatLevelSuspicious, "suspicious"},
		{ThreatLevelMalicious, "malicious"},
		{ThreatLevel(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("ThreatLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNewKnownMaliciousVerdict(t *testing.T) {
	t.Parallel()

	fp := ComputeFingerprint([]byte("known bad"), "")
	v := NewKnownMaliciousVerdict(fp)

	if !v.IsMalicious() {
		t.Error("known-malicious verdict is not malicious")
	}
	if v.CompositeScore != 1.0 || v.Confidence != 1.0 {
		t.Errorf("score/confidence = %.2f/%.2f, want 1.00/1.00", v.CompositeScore, v.Confidence)
	}
	if v.Degraded {
		t.Error("known-malicious verdict marked degraded")
	}
}

func TestFailPolicyVerdicts(t *testing.T) {
	t.Parallel()

	fp := ComputeFingerprint([]byte("unscanned"), "")

	open := NewFailOpenVerdict(fp, "queue full")
	if open.Level != ThreatLevelBenign {
		t.Errorf("fail-open level = %v, want benign", open.Level)
	}
	if !open.Degraded {
		t.Error("fail-open verdict not marked degraded")
	}
	if open.Confidence != 0 {
		t.Errorf("fail-open confidence = %.2f, want 0", open.Confidence)
	}

	closed := NewFailClosedVerdict(fp, "queue full")
	if closed.Level != ThreatLevelMalicious {
		t.Errorf("fail-closed level = %v, want malicious", closed.Level)
	}
	if !closed.Degraded {
		t.Error("fail-closed verdict not marked degraded")
	}
}

func TestVerdict_Summary(t *testing.T) {
	t.Parallel()

	v := NewKnownMaliciousVerdict(ComputeFingerprint([]byte("x"), ""))
	if got := v.Summary(); got == "" {
		t.Error("Summary() returned empty string")
	}
}
