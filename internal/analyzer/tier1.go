// ABOUTME: Tier1 fast heuristic analyzer with sandboxed resource bounds
// ABOUTME: Single-pass weighted pattern scan plus entropy and structural scoring

package analyzer

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Tier1 scoring defaults.
const (
	// DefaultPatternNorm is the normalization constant dividing the sum of
	// severity-weighted match counts.
	DefaultPatternNorm = 2.5

	// DefaultPatternWeight and DefaultStatWeight combine the two sub-scores
	// into the tier score.
	DefaultPatternWeight = 0.8
	DefaultStatWeight    = 0.2

	// DefaultEntropyThreshold is the Shannon-entropy level (bits/byte)
	// above which content contributes to the statistical score.
	DefaultEntropyThreshold = 7.0

	// entropyContribution is added to the statistical score when the
	// entropy threshold is crossed.
	entropyContribution = 0.3

	// anomalyContribution is added when the structural anomaly count
	// reaches DefaultAnomalyThreshold.
	anomalyContribution     = 0.3
	DefaultAnomalyThreshold = 2

	// printableFloor is the printable-byte ratio below which content is
	// flagged as structurally anomalous.
	printableFloor = 0.20
)

// Tier1Config configures the fast analyzer.
type Tier1Config struct {
	// Wall-clock deadline for one invocation.
	Timeout time.Duration

	// Fuel is the step budget; MemoryLimit the byte ceiling.
	Fuel        int64
	MemoryLimit int64

	// Patterns overrides the indicator table (DefaultPatterns when nil).
	Patterns []Pattern

	// PatternNorm overrides DefaultPatternNorm when > 0.
	PatternNorm float64

	// EntropyThreshold overrides DefaultEntropyThreshold when > 0.
	EntropyThreshold float64
}

// Tier1Analyzer is the sandboxed heuristic first-opinion tier.
type Tier1Analyzer struct {
	cfg     Tier1Config
	sandbox Sandbox
	index   *patternIndex
}

// NewTier1Analyzer creates the fast analyzer. A nil sandbox gets the
// in-process metered sandbox.
func NewTier1Analyzer(cfg Tier1Config, sb Sandbox) *Tier1Analyzer {
	if sb == nil {
		sb = NewMeteredSandbox()
	}
	patterns := cfg.Patterns
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if cfg.PatternNorm <= 0 {
		cfg.PatternNorm = DefaultPatternNorm
	}
	if cfg.EntropyThreshold <= 0 {
		cfg.EntropyThreshold = DefaultEntropyThreshold
	}
	return &Tier1Analyzer{
		cfg:     cfg,
		sandbox: sb,
		index:   newPatternIndex(patterns),
	}
}

// Tier returns the tier identity of this analyzer.
func (a *Tier1Analyzer) Tier() types.Tier {
	return types.TierFast
}

// tier1State accumulates signal during the single content pass. It is only
// touched by the sandboxed task; the caller reads it after Run returns
// (safe for cooperative aborts, skipped for abandoned ones).
type tier1State struct {
	freq         [256]int64
	printable    int64
	scanned      int64
	matchCount   map[int]int64 // pattern index -> occurrences
	embeddedExec bool
}

// Analyze produces a fast, resource-bounded first opinion. Exceeding any
// bound aborts cleanly and returns timed_out=true with whatever partial
// signal was computed; it is not an error.
func (a *Tier1Analyzer) Analyze(ctx context.Context, content []byte) types.TierResult {
	start := time.Now()

	// Empty input is a defined boundary: zero score, no indicators.
	if len(content) == 0 {
		return types.TierResult{
			Tier:          types.TierFast,
			Score:         0,
			SubScores:     []float64{0, 0},
			ExecutionTime: time.Since(start),
		}
	}

	st := &tier1State{matchCount: make(map[int]int64)}

	budget := Budget{Fuel: a.cfg.Fuel, MemoryLimit: a.cfg.MemoryLimit, Timeout: a.cfg.Timeout}
	err := a.sandbox.Run(ctx, budget, func(m *Meter) error {
		if err := m.Grow(int64(len(st.freq)) * 8); err != nil {
			return err
		}
		return a.scan(m, content, st)
	})

	if errors.Is(err, ErrAbandoned) {
		// The task goroutine may still be writing; partial state is unsafe.
		return types.TierResult{
			Tier:          types.TierFast,
			Score:         types.NeutralScore,
			ExecutionTime: time.Since(start),
			TimedOut:      true,
			ErrKind:       types.ErrorKindTimeout,
			Error:         err.Error(),
		}
	}

	res := a.score(st, content)
	res.ExecutionTime = time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, ErrDeadline):
		res.TimedOut = true
		res.ErrKind = types.ErrorKindTimeout
		res.Error = err.Error()
	case errors.Is(err, ErrFuelExhausted), errors.Is(err, ErrMemoryLimit):
		res.TimedOut = true
		res.ErrKind = types.ErrorKindResourceExhausted
		res.Error = err.Error()
	default:
		return types.NewFaultResult(types.TierFast, err.Error(), time.Since(start))
	}

	return res
}

// scan performs the single linear pass: byte frequencies, printable ratio,
// inline case-folded pattern matching, and structural checks. It never
// allocates a normalized copy of the input.
func (a *Tier1Analyzer) scan(m *Meter, content []byte, st *tier1State) error {
	for i := 0; i < len(content); i++ {
		if err := m.Burn(1); err != nil {
			return err
		}

		b := content[i]
		st.freq[b]++
		st.scanned++
		if isPrintable(b) {
			st.printable++
		}

		c := foldByte(b)
		for _, pi := range a.index.byFirst[c] {
			text := a.index.patterns[pi].Text
			if matchFolded(content, i, text, m) {
				if st.matchCount[pi] == 0 {
					if err := m.Grow(int64(len(text)) + 16); err != nil {
						return err
					}
				}
				st.matchCount[pi]++
			}
		}

		// Structural check: executable header appearing past offset zero
		// suggests an embedded or appended payload.
		if !st.embeddedExec && i > 0 && (b == 'M' || b == 0x7f) && hasExecHeader(content[i:]) {
			st.embeddedExec = true
		}
	}

	return nil
}

// matchFolded compares pattern text against content at offset with inline
// ASCII case folding. Fuel is charged per compared byte, so an early
// mismatch costs what it compared, not the full pattern length.
func matchFolded(content []byte, offset int, text string, m *Meter) bool {
	if offset+len(text) > len(content) {
		return false
	}
	for j := 0; j < len(text); j++ {
		if m.Burn(1) != nil {
			// Out of fuel mid-compare; the outer loop surfaces the abort
			// on its next Burn.
			return false
		}
		if foldByte(content[offset+j]) != text[j] {
			return false
		}
	}
	return true
}

// score folds the accumulated state into a TierResult.
func (a *Tier1Analyzer) score(st *tier1State, content []byte) types.TierResult {
	// Pattern score: min(1, sum(severity * count) / norm). Iterates in
	// table order so float accumulation is deterministic.
	var weighted float64
	indicators := make([]string, 0, len(st.matchCount))
	for pi := range a.index.patterns {
		count, ok := st.matchCount[pi]
		if !ok {
			continue
		}
		p := a.index.patterns[pi]
		weighted += p.Severity * float64(count)
		indicators = append(indicators, p.Name)
	}
	sort.Strings(indicators)
	patternScore := math.Min(1.0, weighted/a.cfg.PatternNorm)

	// Statistical score: entropy plus structural anomalies, additively
	// capped at 1.0.
	anomalies := 0
	if st.embeddedExec {
		anomalies += 2
	}
	if st.scanned > 0 && float64(st.printable)/float64(st.scanned) < printableFloor && !hasExecHeader(content) {
		// Mostly non-printable without a recognized binary header.
		anomalies++
	}

	var statScore float64
	entropy := shannonEntropy(&st.freq, st.scanned)
	if entropy > a.cfg.EntropyThreshold {
		statScore += entropyContribution
	}
	if anomalies >= DefaultAnomalyThreshold {
		statScore += anomalyContribution
	}
	statScore = math.Min(1.0, statScore)

	score := math.Min(1.0, DefaultPatternWeight*patternScore+DefaultStatWeight*statScore)

	return types.TierResult{
		Tier:       types.TierFast,
		Score:      score,
		SubScores:  []float64{patternScore, statScore},
		Indicators: indicators,
	}
}

// shannonEntropy computes bits-per-byte entropy from a frequency table.
func shannonEntropy(freq *[256]int64, total int64) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range freq {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

func isPrintable(b byte) bool {
	return (b >= 0x20 && b < 0x7f) || b == '\n' || b == '\r' || b == '\t'
}

// hasExecHeader reports a PE (MZ) or ELF magic at the start of the slice.
func hasExecHeader(b []byte) bool {
	if len(b) >= 2 && b[0] == 'M' && b[1] == 'Z' {
		return true
	}
	if len(b) >= 4 && b[0] == 0x7f && b[1] == 'E' && b[2] == 'L' && b[3] == 'F' {
		return true
	}
	return false
}
