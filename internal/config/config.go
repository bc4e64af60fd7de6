package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/data-agent/internal/prepare"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig configures the Assistant (Anthropic Messages API).
type AnthropicConfig struct {
	Key         string        `yaml:"key" mapstructure:"key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures a circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// JinaConfig configures web search used to find candidate data sources.
// Search is skipped when Key is empty.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	MaxResults    int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures data file downloads.
type FetchConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes      int64   `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerHost   float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	DownloadDir   string  `yaml:"download_dir" mapstructure:"download_dir"`
	KeepDownloads bool    `yaml:"keep_downloads" mapstructure:"keep_downloads"`
}

// PipelineConfig configures a single run.
type PipelineConfig struct {
	MaxStageRetries     int    `yaml:"max_stage_retries" mapstructure:"max_stage_retries"`
	CandidateRetryLimit int    `yaml:"candidate_retry_limit" mapstructure:"candidate_retry_limit"`
	DataByteBudget      int    `yaml:"data_byte_budget" mapstructure:"data_byte_budget"`
	OverallTimeoutSecs  int    `yaml:"overall_timeout_secs" mapstructure:"overall_timeout_secs"`
	PreviewRows         int    `yaml:"preview_rows" mapstructure:"preview_rows"`
	Sheet               string `yaml:"sheet" mapstructure:"sheet"`
}

// StoreConfig configures the optional run ledger. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Run bounds shared by the config file and per-request overrides.
const (
	// MinDataByteBudget is the smallest budget that leaves room for a
	// column summary.
	MinDataByteBudget = prepare.MinBudget
	// MaxStageRetriesLimit caps retries per stage.
	MaxStageRetriesLimit = 10
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DATA_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.retry.max_attempts", 3)
	v.SetDefault("anthropic.retry.initial_backoff_ms", 500)
	v.SetDefault("anthropic.retry.max_backoff_ms", 30000)
	v.SetDefault("anthropic.retry.multiplier", 2.0)
	v.SetDefault("anthropic.retry.jitter_fraction", 0.25)
	v.SetDefault("anthropic.circuit.failure_threshold", 5)
	v.SetDefault("anthropic.circuit.reset_timeout_secs", 30)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.max_results", 5)
	v.SetDefault("jina.timeout_secs", 30)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_bytes", 100*1024*1024)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; data-agent/1.0)")
	v.SetDefault("fetch.rate_per_host", 5.0)
	v.SetDefault("fetch.download_dir", "./downloads")
	v.SetDefault("fetch.keep_downloads", false)
	v.SetDefault("pipeline.max_stage_retries", 2)
	v.SetDefault("pipeline.candidate_retry_limit", 3)
	v.SetDefault("pipeline.data_byte_budget", 1024*1024)
	v.SetDefault("pipeline.overall_timeout_secs", 600)
	v.SetDefault("pipeline.preview_rows", 5)
	v.SetDefault("pipeline.sheet", "")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is one of "ask",
// "serve", "batch" or "runs".
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "ask", "batch", "serve":
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Anthropic.Model != "", "anthropic.model is required")
		require(c.Pipeline.MaxStageRetries >= 0 && c.Pipeline.MaxStageRetries <= MaxStageRetriesLimit,
			"pipeline.max_stage_retries must be between 0 and 10")
		require(c.Pipeline.CandidateRetryLimit >= 1, "pipeline.candidate_retry_limit must be >= 1")
		require(c.Pipeline.DataByteBudget >= MinDataByteBudget, "pipeline.data_byte_budget must be >= 256")
		require(c.Fetch.MaxBytes > 0, "fetch.max_bytes must be > 0")
		require(c.Fetch.DownloadDir != "", "fetch.download_dir is required")
	}
	switch mode {
	case "batch":
		require(c.Batch.Concurrency >= 1, "batch.concurrency must be >= 1")
	case "serve":
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
	case "runs":
		require(c.Store.Driver != "", "store.driver is required to list runs")
	}
	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		require(c.Store.DatabaseURL != "", "store.database_url is required for the postgres driver")
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
