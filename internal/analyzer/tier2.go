// ABOUTME: Tier2 behavioral analyzer producing an isolated second opinion
// ABOUTME: Emulated execution trace grouped into weighted behavior classes

package analyzer

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Tier2 defaults. The deep tier gets a larger budget than Tier1 but still
// enforces its own independent deadline.
const (
	DefaultTier2Timeout = 2 * time.Second
	DefaultTier2Fuel    = 256 << 20
	DefaultTier2Memory  = 128 << 20

	// markerHitScale converts marker occurrences within a behavior class
	// into that class's [0,1] score.
	markerHitScale = 0.5
)

// behaviorClass groups related behavioral markers under a fusion weight.
// Weights sum to 1 so the tier score stays in [0,1].
type behaviorClass struct {
	name    string
	weight  float64
	markers []string
}

// defaultBehaviorClasses is the built-in behavioral model: actions the
// emulated trace surfaces, grouped by what they attempt.
func defaultBehaviorClasses() []behaviorClass {
	return []behaviorClass{
		{
			name:   "process-injection",
			weight: 0.35,
			markers: []string{
				"createremotethread", "virtualallocex", "writeprocessmemory",
				"ntunmapviewofsection", "ptrace_poketext",
			},
		},
		{
			name:   "network-activity",
			weight: 0.25,
			markers: []string{
				"urldownloadtofile", "winhttpopen", "internetopenurl",
				"socket(", "connect(", "wget http", "curl http",
			},
		},
		{
			name:   "filesystem-tamper",
			weight: 0.20,
			markers: []string{
				"deletefilea", "movefileexa", "vssadmin delete",
				"/etc/passwd", "/etc/shadow", "wbadmin delete",
			},
		},
		{
			name:   "persistence",
			weight: 0.20,
			markers: []string{
				`\currentversion\run`, "schtasks /create", "crontab -",
				"launchagents", "systemctl enable",
			},
		},
	}
}

// Tier2Config configures the behavioral analyzer.
type Tier2Config struct {
	Timeout     time.Duration
	Fuel        int64
	MemoryLimit int64
}

// Tier2Analyzer is the heavier behavioral second opinion, invoked only
// when Tier1 lands in the gray zone or policy demands it.
type Tier2Analyzer struct {
	cfg     Tier2Config
	sandbox Sandbox
	classes []behaviorClass
	index   *patternIndex
	classOf []int // pattern index -> class index
}

// NewTier2Analyzer creates the behavioral analyzer. A nil sandbox gets the
// in-process metered sandbox.
func NewTier2Analyzer(cfg Tier2Config, sb Sandbox) *Tier2Analyzer {
	if sb == nil {
		sb = NewMeteredSandbox()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTier2Timeout
	}
	if cfg.Fuel <= 0 {
		cfg.Fuel = DefaultTier2Fuel
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultTier2Memory
	}

	classes := defaultBehaviorClasses()
	var patterns []Pattern
	var classOf []int
	for ci, cls := range classes {
		for _, marker := range cls.markers {
			patterns = append(patterns, Pattern{
				Name:     cls.name + "/" + marker,
				Text:     marker,
				Severity: cls.weight,
			})
			classOf = append(classOf, ci)
		}
	}

	return &Tier2Analyzer{
		cfg:     cfg,
		sandbox: sb,
		classes: classes,
		index:   newPatternIndex(patterns),
		classOf: classOf,
	}
}

// Tier returns the tier identity of this analyzer.
func (a *Tier2Analyzer) Tier() types.Tier {
	return types.TierDeep
}

// Analyze runs the behavioral pass. If it cannot complete within its
// deadline it returns timed_out=true with a neutral score rather than
// blocking the worker.
func (a *Tier2Analyzer) Analyze(ctx context.Context, content []byte) types.TierResult {
	start := time.Now()

	if len(content) == 0 {
		return types.TierResult{
			Tier:          types.TierDeep,
			Score:         0,
			ExecutionTime: time.Since(start),
		}
	}

	classHits := make([]int64, len(a.classes))
	seen := make(map[int]bool)

	budget := Budget{Fuel: a.cfg.Fuel, MemoryLimit: a.cfg.MemoryLimit, Timeout: a.cfg.Timeout}
	err := a.sandbox.Run(ctx, budget, func(m *Meter) error {
		return a.trace(m, content, classHits, seen)
	})

	if err != nil {
		kind := types.ErrorKindTimeout
		switch {
		case errors.Is(err, ErrFuelExhausted), errors.Is(err, ErrMemoryLimit):
			kind = types.ErrorKindResourceExhausted
		case errors.Is(err, ErrDeadline), errors.Is(err, ErrAbandoned):
		default:
			return types.NewFaultResult(types.TierDeep, err.Error(), time.Since(start))
		}
		// The deep tier does not report partial behavioral evidence; an
		// interrupted trace is a neutral second opinion.
		return types.TierResult{
			Tier:          types.TierDeep,
			Score:         types.NeutralScore,
			ExecutionTime: time.Since(start),
			TimedOut:      true,
			ErrKind:       kind,
			Error:         err.Error(),
		}
	}

	subScores := make([]float64, len(a.classes))
	var score float64
	var indicators []string
	for ci, cls := range a.classes {
		subScores[ci] = math.Min(1.0, float64(classHits[ci])*markerHitScale)
		score += cls.weight * subScores[ci]
	}
	for pi := range seen {
		indicators = append(indicators, a.index.patterns[pi].Name)
	}
	sort.Strings(indicators)

	return types.TierResult{
		Tier:          types.TierDeep,
		Score:         math.Min(1.0, score),
		SubScores:     subScores,
		Indicators:    indicators,
		ExecutionTime: time.Since(start),
	}
}

// trace is the emulated behavioral pass: a folded linear scan counting
// marker hits per behavior class under the meter.
func (a *Tier2Analyzer) trace(m *Meter, content []byte, classHits []int64, seen map[int]bool) error {
	if err := m.Grow(int64(len(a.classes))*8 + 256); err != nil {
		return err
	}

	for i := 0; i < len(content); i++ {
		if err := m.Burn(1); err != nil {
			return err
		}

		c := foldByte(content[i])
		for _, pi := range a.index.byFirst[c] {
			if matchFolded(content, i, a.index.patterns[pi].Text, m) {
				classHits[a.classOf[pi]]++
				seen[pi] = true
			}
		}
	}
	return nil
}
