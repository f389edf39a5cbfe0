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
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the session persistence sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the semantic cache.
type CacheConfig struct {
	Backend             string  `yaml:"backend" mapstructure:"backend"`
	Path                string  `yaml:"path" mapstructure:"path"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MaxEntries          int     `yaml:"max_entries" mapstructure:"max_entries"`
	TTLHours            int     `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	EmbeddingDims       int     `yaml:"embedding_dims" mapstructure:"embedding_dims"`
}

// SourcesConfig configures the source adapters.
type SourcesConfig struct {
	Enabled          []string `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults       int      `yaml:"max_results" mapstructure:"max_results"`
	GitHubToken      string   `yaml:"github_token" mapstructure:"github_token"`
	RequestsPerSec   float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	CircuitThreshold int      `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	FastModel  string `yaml:"fast_model" mapstructure:"fast_model"`
	SmartModel string `yaml:"smart_model" mapstructure:"smart_model"`
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LLMJudge        bool    `yaml:"llm_judge" mapstructure:"llm_judge"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// knownSources are the adapter names that can appear in sources.enabled.
var knownSources = map[string]bool{
	"github":        true,
	"hackernews":    true,
	"stackoverflow": true,
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "deep-research.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "cache.db")
	v.SetDefault("cache.similarity_threshold", 0.85)
	v.SetDefault("cache.max_entries", 512)
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.embedding_dims", 256)
	v.SetDefault("sources.enabled", []string{"github", "hackernews", "stackoverflow"})
	v.SetDefault("sources.timeout_secs", 10)
	v.SetDefault("sources.max_results", 10)
	v.SetDefault("sources.requests_per_sec", 2.0)
	v.SetDefault("sources.circuit_threshold", 5)
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.smart_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("pipeline.accept_threshold", 0.70)
	v.SetDefault("pipeline.max_retries", 1)
	v.SetDefault("pipeline.timeout_secs", 120)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks the configuration for faults that must abort startup
// before any pipeline state is entered.
func (c *Config) Validate() error {
	if len(c.Sources.Enabled) == 0 {
		return eris.New("config: sources.enabled must name at least one source")
	}
	for _, name := range c.Sources.Enabled {
		if !knownSources[name] {
			return eris.Errorf("config: unknown source %q in sources.enabled", name)
		}
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "sqlite":
	default:
		return eris.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		return eris.Errorf("config: cache.similarity_threshold must be in (0,1], got %v", c.Cache.SimilarityThreshold)
	}
	if c.Cache.TTLHours < 0 {
		return eris.Errorf("config: cache.ttl_hours must be >= 0 (0 disables expiry), got %d", c.Cache.TTLHours)
	}
	if c.Pipeline.AcceptThreshold < 0 || c.Pipeline.AcceptThreshold > 1 {
		return eris.Errorf("config: pipeline.accept_threshold must be in [0,1], got %v", c.Pipeline.AcceptThreshold)
	}
	if c.Pipeline.MaxRetries < 0 {
		return eris.Errorf("config: pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (RESEARCH_ANTHROPIC_KEY)")
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
