// ABOUTME: Status command showing persisted pipeline state
// ABOUTME: Reports verdict store, known-bad index, and job record counts

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/engine"
)

func newStatusCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show persisted pipeline state",
		Long:  `Open the data directory and report stored verdicts, known-malicious entries, and job records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), dataDir)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default from config)")

	return cmd
}

func runStatus(ctx context.Context, dataDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	eng, err := engine.New(engine.Config{
		Dir:        cfg.DataDir,
		InMemory:   cfg.Store.InMemory,
		VerdictTTL: cfg.Store.VerdictTTL,
		Index: engine.IndexConfig{
			ExpectedItems:     cfg.Index.ExpectedItems,
			FalsePositiveRate: cfg.Index.FalsePositiveRate,
		},
		RebuildIndexOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("opening persistence engine: %w", err)
	}
	defer eng.Close()

	verdicts, err := eng.Verdicts.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting verdicts: %w", err)
	}
	jobs, err := eng.Jobs.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting jobs: %w", err)
	}
	idx := eng.Index.Stats()

	fmt.Printf("hikmaai-sentinel status (version %s)\n", version)
	fmt.Printf("  data dir:        %s\n", cfg.DataDir)
	fmt.Printf("  stored verdicts: %d (ttl %s)\n", verdicts, eng.Verdicts.TTL())
	fmt.Printf("  known malicious: %d\n", idx.Entries)
	fmt.Printf("  job records:     %d\n", jobs)
	fmt.Printf("  workers:         %d\n", cfg.Pipeline.WorkerCount)
	fmt.Printf("  queue capacity:  %d\n", cfg.Pipeline.QueueCapacity)
	fmt.Printf("  cache capacity:  %d\n", cfg.Pipeline.CacheCapacity)
	fmt.Printf("  fail policy:     %s\n", failPolicy(cfg.Pipeline.FailOpen))
	return nil
}

func failPolicy(open bool) string {
	if open {
		return "fail-open"
	}
	return "fail-closed"
}
