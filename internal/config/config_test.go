package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.InDelta(t, 0.85, cfg.Cache.SimilarityThreshold, 1e-9)
	assert.Equal(t, 512, cfg.Cache.MaxEntries)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, 256, cfg.Cache.EmbeddingDims)
	assert.Equal(t, []string{"github", "hackernews", "stackoverflow"}, cfg.Sources.Enabled)
	assert.Equal(t, 10, cfg.Sources.TimeoutSecs)
	assert.Equal(t, 10, cfg.Sources.MaxResults)
	assert.InDelta(t, 0.70, cfg.Pipeline.AcceptThreshold, 1e-9)
	assert.Equal(t, 1, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RESEARCH_ANTHROPIC_KEY", "sk-test")
	t.Setenv("RESEARCH_CACHE_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("RESEARCH_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.InDelta(t, 0.9, cfg.Cache.SimilarityThreshold, 1e-9)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cache:
  backend: sqlite
  max_entries: 64
pipeline:
  max_retries: 2
`), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	// Untouched keys keep defaults.
	assert.Equal(t, 10, cfg.Sources.MaxResults)
}

func validConfig() *Config {
	return &Config{
		Store:   StoreConfig{Driver: "sqlite"},
		Cache:   CacheConfig{Backend: "memory", SimilarityThreshold: 0.85},
		Sources: SourcesConfig{Enabled: []string{"github"}},
		Anthropic: AnthropicConfig{
			Key: "sk-test",
		},
		Pipeline: PipelineConfig{AcceptThreshold: 0.70, MaxRetries: 1},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no sources", func(c *Config) { c.Sources.Enabled = nil }, "sources.enabled"},
		{"unknown source", func(c *Config) { c.Sources.Enabled = []string{"reddit"} }, "unknown source"},
		{"bad store driver", func(c *Config) { c.Store.Driver = "mysql" }, "store driver"},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache backend"},
		{"threshold too high", func(c *Config) { c.Cache.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"threshold zero", func(c *Config) { c.Cache.SimilarityThreshold = 0 }, "similarity_threshold"},
		{"negative ttl", func(c *Config) { c.Cache.TTLHours = -1 }, "ttl_hours"},
		{"accept threshold", func(c *Config) { c.Pipeline.AcceptThreshold = -0.1 }, "accept_threshold"},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }, "max_retries"},
		{"missing key", func(c *Config) { c.Anthropic.Key = "" }, "anthropic.key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "shouty", Format: "json"}))
}
