package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Anthropic.Retry.MaxAttempts)
	assert.InDelta(t, 0.25, cfg.Anthropic.Retry.JitterFraction, 0.001)
	assert.Equal(t, 5, cfg.Anthropic.Circuit.FailureThreshold)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, int64(100*1024*1024), cfg.Fetch.MaxBytes)
	assert.Equal(t, "./downloads", cfg.Fetch.DownloadDir)
	assert.False(t, cfg.Fetch.KeepDownloads)
	assert.Equal(t, 2, cfg.Pipeline.MaxStageRetries)
	assert.Equal(t, 3, cfg.Pipeline.CandidateRetryLimit)
	assert.Equal(t, 1024*1024, cfg.Pipeline.DataByteBudget)
	assert.Equal(t, 600, cfg.Pipeline.OverallTimeoutSecs)
	assert.Equal(t, "", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
pipeline:
  max_stage_retries: 4
  data_byte_budget: 2048
fetch:
  keep_downloads: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Pipeline.MaxStageRetries)
	assert.Equal(t, 2048, cfg.Pipeline.DataByteBudget)
	assert.True(t, cfg.Fetch.KeepDownloads)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Pipeline.CandidateRetryLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
anthropic:
  model: claude-haiku-4-5-20251001
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DATA_AGENT_ANTHROPIC_MODEL", "claude-opus-4-6")
	t.Setenv("DATA_AGENT_LOG_LEVEL", "warn")
	t.Setenv("DATA_AGENT_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4-6", cfg.Anthropic.Model)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Anthropic.Key = "sk-ant-key"
	return cfg
}

func TestValidate_Ask(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate("ask"))

	cfg.Anthropic.Key = ""
	cfg.Pipeline.DataByteBudget = 10
	cfg.Pipeline.CandidateRetryLimit = 0
	err := cfg.Validate("ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "pipeline.data_byte_budget")
	assert.Contains(t, err.Error(), "pipeline.candidate_retry_limit")
}

func TestValidate_MaxStageRetriesCapped(t *testing.T) {
	cfg := validConfig(t)
	cfg.Pipeline.MaxStageRetries = MaxStageRetriesLimit
	assert.NoError(t, cfg.Validate("ask"))

	cfg.Pipeline.MaxStageRetries = MaxStageRetriesLimit + 1
	assert.ErrorContains(t, cfg.Validate("ask"), "pipeline.max_stage_retries must be between 0 and 10")
}

func TestValidate_Serve(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_Store(t *testing.T) {
	cfg := validConfig(t)

	assert.ErrorContains(t, cfg.Validate("runs"), "store.driver is required")

	cfg.Store.Driver = "postgres"
	assert.ErrorContains(t, cfg.Validate("runs"), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/agent"
	assert.NoError(t, cfg.Validate("runs"))

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate("ask"), "store.driver must be")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
