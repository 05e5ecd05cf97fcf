// ABOUTME: Tests for the Tier2 behavioral analyzer
// ABOUTME: Validates behavior-class scoring and neutral timeout semantics

package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func newTestTier2() *Tier2Analyzer {
	return NewTier2Analyzer(Tier2Config{Timeout: 5 * time.Second}, nil)
}

func TestTier2_EmptyInput(t *testing.T) {
	t.Parallel()

	res := newTestTier2().Analyze(context.Background(), nil)
	if res.Score != 0 || res.Failed() {
		t.Errorf("result = %+v, want zero score and no error", res)
	}
}

func TestTier2_BenignContent(t *testing.T) {
	t.Parallel()

	res := newTestTier2().Analyze(context.Background(), []byte("hello, this is a harmless document about cooking"))
	if res.Score != 0 {
		t.Errorf("Score = %.2f, want 0 for benign content", res.Score)
	}
}

func TestTier2_BehavioralMarkers(t *testing.T) {
	t.Parallel()

	content := []byte(`payload calls VirtualAllocEx then WriteProcessMemory then CreateRemoteThread;
persistence via schtasks /create and HKLM\...\CurrentVersion\Run`)
	res := newTestTier2().Analyze(context.Background(), content)

	if res.Score <= 0.3 {
		t.Errorf("Score = %.2f, want > 0.3 for injection plus persistence", res.Score)
	}
	if len(res.Indicators) < 4 {
		t.Errorf("Indicators = %v, want at least 4 markers", res.Indicators)
	}
	if len(res.SubScores) != 4 {
		t.Fatalf("SubScores = %v, want one per behavior class", res.SubScores)
	}
	if res.SubScores[0] != 1.0 {
		t.Errorf("process-injection sub-score = %.2f, want saturation at 1.0", res.SubScores[0])
	}
}

func TestTier2_ScoreCapped(t *testing.T) {
	t.Parallel()

	content := []byte(strings.Repeat("createremotethread urldownloadtofile vssadmin delete shadows crontab -e ", 50))
	res := newTestTier2().Analyze(context.Background(), content)

	if res.Score > 1.0 {
		t.Errorf("Score = %.2f, want <= 1.0", res.Score)
	}
}

func TestTier2_TimeoutIsNeutral(t *testing.T) {
	t.Parallel()

	a := NewTier2Analyzer(Tier2Config{Timeout: time.Second}, stubSandbox{err: ErrDeadline})
	res := a.Analyze(context.Background(), []byte("createremotethread"))

	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if res.Score != types.NeutralScore {
		t.Errorf("Score = %.2f, want neutral %.2f on timeout", res.Score, types.NeutralScore)
	}
	if res.ErrKind != types.ErrorKindTimeout {
		t.Errorf("ErrKind = %v, want timeout", res.ErrKind)
	}
}

func TestTier2_FuelExhaustionIsNeutral(t *testing.T) {
	t.Parallel()

	a := NewTier2Analyzer(Tier2Config{Timeout: 5 * time.Second, Fuel: 512}, nil)
	res := a.Analyze(context.Background(), make([]byte, 1<<20))

	if !res.TimedOut || res.ErrKind != types.ErrorKindResourceExhausted {
		t.Errorf("result = %+v, want resource_exhausted timeout", res)
	}
	if res.Score != types.NeutralScore {
		t.Errorf("Score = %.2f, want neutral", res.Score)
	}
}

func TestTier2_Determinism(t *testing.T) {
	t.Parallel()

	content := []byte("socket( connect( curl http://c2.example/beacon systemctl enable implant")

	first := newTestTier2().Analyze(context.Background(), content)
	for i := 0; i < 5; i++ {
		res := newTestTier2().Analyze(context.Background(), content)
		if res.Score != first.Score {
			t.Fatalf("run %d score %.6f != %.6f", i, res.Score, first.Score)
		}
	}
}
