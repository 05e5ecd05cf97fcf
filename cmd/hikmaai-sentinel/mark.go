// ABOUTME: Mark command recording fingerprints as confirmed malicious
// ABOUTME: Feeds the known-bad index so future submissions short-circuit

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/engine"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func newMarkCmd() *cobra.Command {
	var (
		dataDir  string
		fromFile bool
	)

	cmd := &cobra.Command{
		Use:   "mark <fingerprint>...",
		Short: "Mark fingerprints as confirmed malicious",
		Long: `Record one or more fingerprints in the known-malicious index.
Future submissions of matching content short-circuit to a maximum
confidence malicious verdict without running the analyzers.

With --file, arguments are file paths whose contents are fingerprinted
(with an empty MIME type) before being recorded.

Examples:
  hikmaai-sentinel mark 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
  hikmaai-sentinel mark --file confirmed-dropper.exe`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMark(args, dataDir, fromFile)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default from config)")
	cmd.Flags().BoolVar(&fromFile, "file", false, "treat arguments as file paths to fingerprint")

	return cmd
}

func runMark(args []string, dataDir string, fromFile bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Dir:        cfg.DataDir,
		SyncWrites: true, // Detections must survive a crash.
		VerdictTTL: cfg.Store.VerdictTTL,
		Index: engine.IndexConfig{
			ExpectedItems:     cfg.Index.ExpectedItems,
			FalsePositiveRate: cfg.Index.FalsePositiveRate,
		},
	})
	if err != nil {
		return fmt.Errorf("opening persistence engine: %w", err)
	}
	defer eng.Close()

	for _, arg := range args {
		fp, err := resolveFingerprint(arg, fromFile)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		if err := eng.Index.Add(fp); err != nil {
			return fmt.Errorf("%s: recording fingerprint: %w", arg, err)
		}
		fmt.Printf("marked %s\n", fp.Short())
	}
	return nil
}

func resolveFingerprint(arg string, fromFile bool) (types.Fingerprint, error) {
	if !fromFile {
		return types.ParseFingerprint(arg)
	}
	content, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return types.ComputeFingerprint(content, ""), nil
}
