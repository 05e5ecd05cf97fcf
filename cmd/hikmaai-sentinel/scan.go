// ABOUTME: Scan command analyzing local files through the full pipeline
// ABOUTME: Builds engine, tiers, and orchestrator; prints verdicts as text or JSON

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/analyzer"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/engine"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/pipeline"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/verdict"
)

func newScanCmd() *cobra.Command {
	var (
		dataDir    string
		outputJSON bool
		showStats  bool
	)

	cmd := &cobra.Command{
		Use:   "scan <file>...",
		Short: "Analyze local files and print their verdicts",
		Long: `Analyze one or more local files through the verdict pipeline.

Each file is fingerprinted first; content already known to the verdict
cache, the known-malicious index, or the persistent store is answered
without re-analysis. New content runs through the tiered analyzers.

Examples:
  hikmaai-sentinel scan download.bin
  hikmaai-sentinel scan --json *.exe
  hikmaai-sentinel scan --stats suspicious.ps1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), args, dataDir, outputJSON, showStats)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default from config)")
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output verdicts as JSON")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print pipeline statistics after scanning")

	return cmd
}

func runScan(ctx context.Context, paths []string, dataDir string, outputJSON, showStats bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "hikmaai-sentinel",
		Version:     version,
	}, os.Stderr)

	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:       cfg.Tracing.Enabled,
		ServiceName:   "hikmaai-sentinel",
		Version:       version,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Dir:        cfg.DataDir,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
		VerdictTTL: cfg.Store.VerdictTTL,
		Index: engine.IndexConfig{
			ExpectedItems:     cfg.Index.ExpectedItems,
			FalsePositiveRate: cfg.Index.FalsePositiveRate,
		},
		RebuildIndexOnStart: cfg.Store.RebuildIndexOnStart,
	})
	if err != nil {
		return fmt.Errorf("opening persistence engine: %w", err)
	}
	defer eng.Close()

	sandbox := analyzer.NewMeteredSandbox()
	tier1 := analyzer.NewTier1Analyzer(analyzer.Tier1Config{
		Timeout:     cfg.Tier1.Timeout,
		Fuel:        cfg.Tier1.Fuel,
		MemoryLimit: cfg.Tier1.MemoryLimit,
	}, sandbox)
	tier2 := analyzer.NewTier2Analyzer(analyzer.Tier2Config{
		Timeout:     cfg.Tier2.Timeout,
		Fuel:        cfg.Tier2.Fuel,
		MemoryLimit: cfg.Tier2.MemoryLimit,
	}, sandbox)
	fuser := verdict.NewEngine(verdict.Config{
		LowThreshold:  cfg.Verdict.LowThreshold,
		HighThreshold: cfg.Verdict.HighThreshold,
	})

	orch := pipeline.New(pipeline.Config{
		CacheCapacity: cfg.Pipeline.CacheCapacity,
		QueueCapacity: cfg.Pipeline.QueueCapacity,
		WorkerCount:   cfg.Pipeline.WorkerCount,
		MaxInputSize:  cfg.Pipeline.MaxInputSize,
		JobTimeout:    cfg.Pipeline.JobTimeout,
		GrayZoneLow:   cfg.Verdict.GrayZoneLow,
		GrayZoneHigh:  cfg.Verdict.GrayZoneHigh,
		FailOpen:      cfg.Pipeline.FailOpen,
	}, eng, tier1, tier2, fuser, logger)

	orch.Start()
	defer orch.Stop()

	var failures int
	for _, path := range paths {
		if err := scanOne(ctx, orch, path, outputJSON); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failures++
		}
	}

	if showStats {
		printStats(orch.Stats())
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(paths))
	}
	return nil
}

func scanOne(ctx context.Context, orch *pipeline.Orchestrator, path string, outputJSON bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	req := types.NewScanRequest(content, filepath.Base(path), mimeType, "file://"+path)

	v, err := orch.Submit(ctx, req)
	if err != nil {
		return err
	}

	if outputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling verdict: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s: %s\n", path, v.Summary())
	fmt.Printf("  fingerprint: %s\n", v.Fingerprint.Short())
	for _, reason := range v.Explanation {
		fmt.Printf("  - %s\n", reason)
	}
	return nil
}

func printStats(s pipeline.Stats) {
	fmt.Println("pipeline statistics:")
	fmt.Printf("  submissions:  %d\n", s.Pipeline.Submissions)
	fmt.Printf("  cache hits:   %d\n", s.Pipeline.CacheHits)
	fmt.Printf("  store hits:   %d\n", s.Pipeline.StoreHits)
	fmt.Printf("  known bad:    %d\n", s.Pipeline.KnownBadHits)
	fmt.Printf("  tier1 runs:   %d\n", s.Pipeline.Tier1Runs)
	fmt.Printf("  tier2 runs:   %d\n", s.Pipeline.Tier2Runs)
	fmt.Printf("  timeouts:     %d\n", s.Pipeline.TierTimeouts)
	fmt.Printf("  faults:       %d\n", s.Pipeline.Faults)
	fmt.Printf("  verdicts:     benign=%d suspicious=%d malicious=%d\n",
		s.Pipeline.VerdictsBenign, s.Pipeline.VerdictsSuspicious, s.Pipeline.VerdictsMalicious)
	fmt.Printf("  latency p50:  %s\n", s.Latency.P50)
	fmt.Printf("  latency p99:  %s\n", s.Latency.P99)
}
