package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_AppliesDefaultsWhenSectionsOmitted(t *testing.T) {
	path := writeConfig(t, "detector:\n  min_profit_pct: 0.01\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.Detector.MinProfitPct)
	assert.Equal(t, 400, cfg.Detector.IntervalMs)
	assert.Equal(t, 4, cfg.Detector.MaxCycleLen)
	assert.Equal(t, []string{"100", "500", "1000"}, cfg.Detector.SizeLadder)
	assert.Equal(t, 600, cfg.Graph.TTLSeconds)
	assert.Equal(t, uint64(100), cfg.Graph.Pruning.EveryBlocks)
	assert.Equal(t, 1000, cfg.Dedup.WindowMs)
	assert.Equal(t, 50, cfg.Sim.TimeoutMs)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
detector:
  interval_ms: 250
  max_cycle_len: 6
graph:
  ttl_seconds: 120
sim:
  max_concurrent: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Detector.IntervalMs)
	assert.Equal(t, 6, cfg.Detector.MaxCycleLen)
	assert.Equal(t, 120, cfg.Graph.TTLSeconds)
	assert.Equal(t, 8, cfg.Sim.MaxConcurrent)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
