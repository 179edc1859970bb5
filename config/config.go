// Package config loads the detector's configuration from YAML plus .env
// overrides, grounded on the teacher's config/config.go: same
// godotenv.Load-then-yaml.Unmarshal-then-defaults shape, rescoped from
// scanner/API/storage sections to the detector/graph/dedup/sim sections
// spec section 6 names.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the detector's full configuration.
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Graph    GraphConfig    `yaml:"graph"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Sim      SimConfig      `yaml:"sim"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// DetectorConfig controls the Cycle Engine (spec section 6).
type DetectorConfig struct {
	IntervalMs     int      `yaml:"interval_ms"`
	MinProfitPct   float64  `yaml:"min_profit_pct"`
	MinNetProfit   string   `yaml:"min_net_profit"` // decimal string, parsed via domain.ParseQuantity
	MaxCycleLen    int      `yaml:"max_cycle_len"`
	AllowedPairs   []string `yaml:"allowed_pairs"` // "ASSET_X/ASSET_Y"; empty = no restriction
	SizeLadder     []string `yaml:"size_ladder"`   // decimal strings
	SizeFraction   float64  `yaml:"size_fraction"`
	SlippageCapPct float64  `yaml:"slippage_cap_pct"`
	Workers        int      `yaml:"workers"`
}

// GraphConfig controls the Price Graph's retention policy (spec 4.2).
type GraphConfig struct {
	TTLSeconds         int           `yaml:"ttl_seconds"`
	MinTVL             string        `yaml:"min_tvl"`
	OpportunityWindowS int           `yaml:"opportunity_window_seconds"`
	MaxEdges           int           `yaml:"max_edges"`
	ProtectedPairs     []string      `yaml:"protected_pairs"`
	Pruning            PruningConfig `yaml:"pruning"`
}

// PruningConfig controls how often the Block Scheduler sweeps stale edges.
type PruningConfig struct {
	EveryBlocks uint64 `yaml:"every_blocks"`
}

// DedupConfig controls the Block Scheduler's sliding dedup window (spec
// 4.5).
type DedupConfig struct {
	WindowMs           int     `yaml:"window_ms"`
	ReemitThresholdPct float64 `yaml:"reemit_threshold_pct"`
	OutputBufferSize   int     `yaml:"output_buffer_size"`
}

// SimConfig controls the Gas & Net-Profit Evaluator (spec 4.4).
type SimConfig struct {
	TimeoutMs        int     `yaml:"timeout_ms"`
	MaxConcurrent    int     `yaml:"max_concurrent"`
	GasPriceMaxAgeS  int     `yaml:"gas_price_max_age_seconds"`
	OracleRatePerSec float64 `yaml:"oracle_rate_per_sec"`
}

// StorageConfig controls the opportunity history log.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls logging format/level (ambient concern, carried
// regardless of the spec's feature-scoped non-goals).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path as YAML, applies a local .env file's overrides (silently
// skipped if absent), then fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// IntervalDuration returns the detector's polling/block interval as a
// time.Duration (only meaningful for an Ingestor that polls rather than
// subscribes).
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Detector.IntervalMs) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults fills in the spec's stated defaults for anything left unset
// (spec sections 4.2, 4.3, 4.4, 4.5, 6).
func setDefaults(cfg *Config) {
	if cfg.Detector.IntervalMs <= 0 {
		cfg.Detector.IntervalMs = 400
	}
	if cfg.Detector.MinProfitPct <= 0 {
		cfg.Detector.MinProfitPct = 0.001
	}
	if cfg.Detector.MinNetProfit == "" {
		cfg.Detector.MinNetProfit = "0"
	}
	if cfg.Detector.MaxCycleLen <= 0 {
		cfg.Detector.MaxCycleLen = 4
	}
	if len(cfg.Detector.SizeLadder) == 0 {
		cfg.Detector.SizeLadder = []string{"100", "500", "1000"}
	}
	if cfg.Detector.SizeFraction <= 0 {
		cfg.Detector.SizeFraction = 0.1
	}
	if cfg.Detector.SlippageCapPct <= 0 {
		cfg.Detector.SlippageCapPct = 0.5
	}

	if cfg.Graph.TTLSeconds <= 0 {
		cfg.Graph.TTLSeconds = 600
	}
	if cfg.Graph.MinTVL == "" {
		cfg.Graph.MinTVL = "0"
	}
	if cfg.Graph.OpportunityWindowS <= 0 {
		cfg.Graph.OpportunityWindowS = 3600
	}
	if cfg.Graph.MaxEdges <= 0 {
		cfg.Graph.MaxEdges = 10_000
	}
	if cfg.Graph.Pruning.EveryBlocks <= 0 {
		cfg.Graph.Pruning.EveryBlocks = 100
	}

	if cfg.Dedup.WindowMs <= 0 {
		cfg.Dedup.WindowMs = 1000
	}
	if cfg.Dedup.ReemitThresholdPct <= 0 {
		cfg.Dedup.ReemitThresholdPct = 0.05
	}
	if cfg.Dedup.OutputBufferSize <= 0 {
		cfg.Dedup.OutputBufferSize = 256
	}

	if cfg.Sim.TimeoutMs <= 0 {
		cfg.Sim.TimeoutMs = 50
	}
	if cfg.Sim.MaxConcurrent <= 0 {
		cfg.Sim.MaxConcurrent = 16
	}
	if cfg.Sim.GasPriceMaxAgeS <= 0 {
		cfg.Sim.GasPriceMaxAgeS = 300
	}
	if cfg.Sim.OracleRatePerSec <= 0 {
		cfg.Sim.OracleRatePerSec = 20
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "arbcore.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
