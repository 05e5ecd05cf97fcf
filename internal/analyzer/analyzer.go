// ABOUTME: TierAnalyzer interface shared by the fast and deep tiers
// ABOUTME: Both tiers produce uniform TierResults so verdict fusion composes

package analyzer

import (
	"context"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// TierAnalyzer is the closed interface over the two analysis tiers. The
// tier set is fixed and known; new tiers are new implementations here, not
// open-ended plugins.
type TierAnalyzer interface {
	// Tier identifies which tier this analyzer implements.
	Tier() types.Tier

	// Analyze examines content under the analyzer's resource bounds.
	// It never returns an error: failures degrade into the TierResult's
	// ErrKind so a verdict is always producible downstream.
	Analyze(ctx context.Context, content []byte) types.TierResult
}

var (
	_ TierAnalyzer = (*Tier1Analyzer)(nil)
	_ TierAnalyzer = (*Tier2Analyzer)(nil)
)
