// ABOUTME: Configuration loading and defaults for hikmaai-sentinel
// ABOUTME: Handles YAML config files, validation, and XDG paths

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration for hikmaai-sentinel.
type Config struct {
	// Data directory for BadgerDB and the known-bad index.
	DataDir string `yaml:"data_dir"`

	// Pipeline sizing and policy.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Per-tier analysis budgets.
	Tier1 TierConfig `yaml:"tier1"`
	Tier2 TierConfig `yaml:"tier2"`

	// Verdict fusion thresholds.
	Verdict VerdictConfig `yaml:"verdict"`

	// Persistent store settings.
	Store StoreConfig `yaml:"store"`

	// Known-malicious index sizing.
	Index IndexConfig `yaml:"index"`

	// Logging configuration.
	Log LogConfig `yaml:"log"`

	// Tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// PipelineConfig holds orchestrator and worker pool settings.
type PipelineConfig struct {
	// CacheCapacity is the in-memory verdict cache size in entries.
	CacheCapacity int `yaml:"cache_capacity"`

	// QueueCapacity bounds the pending scan queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// WorkerCount is the fixed number of analysis workers.
	WorkerCount int `yaml:"worker_count"`

	// MaxInputSize rejects submissions larger than this, in bytes.
	MaxInputSize int64 `yaml:"max_input_size"`

	// JobTimeout bounds a job's total wall-clock time across tiers.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// FailOpen controls backpressure policy: true delivers a benign
	// degraded verdict when the queue is full, false delivers malicious.
	FailOpen bool `yaml:"fail_open"`
}

// TierConfig holds one analysis tier's resource budget.
type TierConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Fuel        int64         `yaml:"fuel"`
	MemoryLimit int64         `yaml:"memory_limit"`
}

// VerdictConfig holds fusion weights and classification thresholds.
type VerdictConfig struct {
	// GrayZoneLow and GrayZoneHigh bound the tier-1 score band that
	// escalates to deep analysis.
	GrayZoneLow  float64 `yaml:"gray_zone_low"`
	GrayZoneHigh float64 `yaml:"gray_zone_high"`

	// LowThreshold and HighThreshold split composite scores into
	// benign / suspicious / malicious.
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
}

// StoreConfig holds persistent verdict store settings.
type StoreConfig struct {
	// VerdictTTL expires persisted verdicts; zero keeps them forever.
	VerdictTTL time.Duration `yaml:"verdict_ttl"`

	// InMemory runs the store without files (tests, ephemeral hosts).
	InMemory bool `yaml:"in_memory"`

	// SyncWrites forces fsync on every write.
	SyncWrites bool `yaml:"sync_writes"`

	// RebuildIndexOnStart rebuilds the known-bad bloom filter from
	// the store at startup.
	RebuildIndexOnStart bool `yaml:"rebuild_index_on_start"`
}

// IndexConfig sizes the known-malicious bloom filter.
type IndexConfig struct {
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// DefaultConfig returns a Config with default values.
// External dependencies (tracing) are disabled by default for
// standalone single-binary operation.
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Pipeline: PipelineConfig{
			CacheCapacity: 4096,
			QueueCapacity: 100,
			WorkerCount:   4,
			MaxInputSize:  32 << 20,
			JobTimeout:    5 * time.Second,
			FailOpen:      true,
		},
		Tier1: TierConfig{
			Timeout:     100 * time.Millisecond,
			Fuel:        64 << 20,
			MemoryLimit: 32 << 20,
		},
		Tier2: TierConfig{
			Timeout:     2 * time.Second,
			Fuel:        256 << 20,
			MemoryLimit: 128 << 20,
		},
		Verdict: VerdictConfig{
			GrayZoneLow:   0.3,
			GrayZoneHigh:  0.7,
			LowThreshold:  0.4,
			HighThreshold: 0.7,
		},
		Store: StoreConfig{
			VerdictTTL:          7 * 24 * time.Hour,
			SyncWrites:          false,
			RebuildIndexOnStart: true,
		},
		Index: IndexConfig{
			ExpectedItems:     1_000_000,
			FalsePositiveRate: 0.01,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text", // Human-readable by default
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
	}
}

// Load reads a YAML config file, layering it over the defaults.
// A missing file returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Pipeline.CacheCapacity <= 0 {
		return fmt.Errorf("pipeline.cache_capacity must be positive, got %d", c.Pipeline.CacheCapacity)
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline.worker_count must be positive, got %d", c.Pipeline.WorkerCount)
	}
	if c.Pipeline.MaxInputSize <= 0 {
		return fmt.Errorf("pipeline.max_input_size must be positive, got %d", c.Pipeline.MaxInputSize)
	}
	if c.Verdict.GrayZoneLow > c.Verdict.GrayZoneHigh {
		return fmt.Errorf("verdict.gray_zone_low %.2f exceeds gray_zone_high %.2f",
			c.Verdict.GrayZoneLow, c.Verdict.GrayZoneHigh)
	}
	if c.Verdict.LowThreshold > c.Verdict.HighThreshold {
		return fmt.Errorf("verdict.low_threshold %.2f exceeds high_threshold %.2f",
			c.Verdict.LowThreshold, c.Verdict.HighThreshold)
	}
	if c.Tier1.Timeout <= 0 || c.Tier2.Timeout <= 0 {
		return fmt.Errorf("tier timeouts must be positive")
	}
	return nil
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	// Try XDG_DATA_HOME first.
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hikmaai-sentinel")
	}

	// Fall back to home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/hikmaai-sentinel"
	}

	return filepath.Join(home, ".local", "share", "hikmaai-sentinel")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// Try XDG_CONFIG_HOME first.
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hikmaai-sentinel", "config.yaml")
	}

	// Fall back to home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/hikmaai-sentinel/config.yaml"
	}

	return filepath.Join(home, ".config", "hikmaai-sentinel", "config.yaml")
}
