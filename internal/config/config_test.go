package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found.
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Store.MaxConns)
	assert.Equal(t, 2, cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.True(t, cfg.Sources.WebSearch.Enabled)
	assert.Equal(t, 30, cfg.Sources.WebSearch.RateLimit)
	assert.Equal(t, 60, cfg.Sources.WebSearch.WindowSecs)
	assert.Equal(t, "medium", cfg.Sources.WebSearch.Quality)
	assert.Equal(t, "high", cfg.Sources.Maps.Quality)
	assert.Equal(t, "low", cfg.Sources.Directory.Quality)
	assert.Equal(t, []string{"maps", "websearch", "directory"}, cfg.Sources.ReliabilityOrder)
	assert.Equal(t, 2, cfg.Sources.BackoffBaseSecs)
	assert.Equal(t, 120, cfg.Sources.BackoffCapSecs)

	assert.Equal(t, "normal", cfg.Validator.Strictness)
	assert.Equal(t, 3, cfg.Validator.MinNameLength)
	assert.NotEmpty(t, cfg.Validator.InvalidKeywords)
	assert.NotEmpty(t, cfg.Validator.InvalidDomains)
	assert.NotEmpty(t, cfg.Validator.ListiclePatterns)

	assert.Equal(t, "55", cfg.Dedupe.DefaultCountryCode)

	assert.InDelta(t, 20, cfg.Scoring.PhoneWeight, 0.001)
	assert.InDelta(t, 25, cfg.Scoring.NoWebsiteBonus, 0.001)
	assert.InDelta(t, 0.4, cfg.Scoring.IntelligenceBlend, 0.001)

	assert.False(t, cfg.Intelligence.Enabled)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Intelligence.Model)
	assert.Equal(t, 4, cfg.Intelligence.MaxConcurrency)

	assert.Equal(t, 50, cfg.Collect.MaxLeads)
	assert.InDelta(t, 40, cfg.Collect.QualityFloor, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/prospector
log:
  level: debug
  format: console
sources:
  websearch:
    rate_limit: 5
validator:
  strictness: high
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Sources.WebSearch.RateLimit)
	assert.Equal(t, "high", cfg.Validator.Strictness)
	// Defaults still apply for unset values.
	assert.Equal(t, 60, cfg.Sources.WebSearch.WindowSecs)
	assert.Equal(t, 50, cfg.Collect.MaxLeads)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROSPECTOR_STORE_DRIVER", "postgres")
	t.Setenv("PROSPECTOR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("PROSPECTOR_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestIntelligenceTimeout(t *testing.T) {
	assert.Equal(t, "10s", IntelligenceConfig{}.Timeout().String())
	assert.Equal(t, "30s", IntelligenceConfig{TimeoutSecs: 30}.Timeout().String())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
