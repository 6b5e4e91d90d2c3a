// Package config loads the application configuration from an optional
// config.yaml plus CURATOR_-prefixed environment variables, and installs
// the global logger. The loaded Config is immutable and passed into each
// component at construction time.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Parser    ParserConfig    `yaml:"parser" mapstructure:"parser"`
	Tuning    TuningConfig    `yaml:"tuning" mapstructure:"tuning"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig bounds the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AIConfig gates LLM-backed translation and proposals.
type AIConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Provider selects the translation/proposal backend: mock or anthropic.
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	PromptVersion     string `yaml:"prompt_version" mapstructure:"prompt_version"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	CallTimeoutSecs   int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ParserConfig configures file parsing.
type ParserConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// TuningConfig points at an operator scoring profile.
type TuningConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// WorkerConfig configures the job-polling loop.
type WorkerConfig struct {
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ReferenceConfig configures the external free-reference lookup.
type ReferenceConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "curator.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", "mock")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.prompt_version", "v1")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.call_timeout_secs", 60)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("parser.pdftotext_path", "pdftotext")
	v.SetDefault("worker.poll_interval_secs", 2)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("reference.timeout_secs", 8)

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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	switch c.AI.Provider {
	case "mock", "anthropic":
	default:
		return eris.Errorf("config: unsupported ai provider %q", c.AI.Provider)
	}
	if c.AI.Provider == "anthropic" && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required when ai.provider is anthropic")
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
