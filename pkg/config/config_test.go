package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configPath := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 45s
feed:
  source: https://example.com/feed.xml
  timezone: "+05:30"
fetch:
  timeout: 10s
  user_agent: test-agent
extraction:
  primary: 300
caption:
  budget: 280
  hashtags: "#test"
pipeline:
  output_root: /tmp/archive
  workers: 2
  max_items: 5
  run_timeout: 2m
  overwrite: true
`)
		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "https://example.com/feed.xml", cfg.Feed.Source)
		assert.Equal(t, "+05:30", cfg.Feed.Timezone)
		assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
		assert.Equal(t, 300, cfg.Extraction.Primary)
		assert.Equal(t, 600, cfg.Extraction.Secondary, "unset threshold gets default")
		assert.Equal(t, 280, cfg.Caption.Budget)
		assert.Equal(t, "#test", cfg.Caption.Hashtags)
		assert.Equal(t, "/tmp/archive", cfg.Pipeline.OutputRoot)
		assert.Equal(t, 2, cfg.Pipeline.Workers)
		assert.Equal(t, 5, cfg.Pipeline.MaxItems)
		assert.Equal(t, 2*time.Minute, cfg.Pipeline.RunTimeout)
		assert.True(t, cfg.Pipeline.Overwrite)
		assert.False(t, cfg.LLM.Enabled)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "server:\n  listen: \":8081\"\n"))
		require.NoError(t, err)
		assert.Equal(t, ":8081", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "https://feeds.feedburner.com/TheHackersNews?format=xml", cfg.Feed.Source)
		assert.Equal(t, "Asia/Kolkata", cfg.Feed.Timezone)
		assert.Equal(t, defaultUserAgent, cfg.Feed.UserAgent)
		assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, int64(20<<20), cfg.Fetch.MaxBodySize)
		assert.Equal(t, ExtractionConfig{Primary: 400, Secondary: 600, Readability: 200}, cfg.Extraction)
		assert.Equal(t, CaptionConfig{Budget: 3000, SummaryLimit: 900, Hashtags: defaultHashtags}, cfg.Caption)
		assert.Equal(t, "https://api.deepseek.com", cfg.LLM.Endpoint)
		assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
		assert.Equal(t, 3, cfg.LLM.Attempts)
		assert.Equal(t, "./THN", cfg.Pipeline.OutputRoot)
		assert.Equal(t, 4, cfg.Pipeline.Workers)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("POSTKIT_TEST_KEY", "secret-key")
		cfg, err := Load(writeConfig(t, "llm:\n  enabled: true\n  api_key: ${POSTKIT_TEST_KEY}\n"))
		require.NoError(t, err)
		assert.True(t, cfg.LLM.Enabled)
		assert.Equal(t, "secret-key", cfg.LLM.APIKey)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5000", cfg.Server.Listen)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.RunTimeout)
	assert.NoError(t, VerifyAgainstEmbeddedSchema(cfg))
}

func TestValidate(t *testing.T) {
	tbl := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "server timeout", modify: func(c *Config) { c.Server.Timeout = time.Millisecond }, errMsg: "server timeout"},
		{name: "fetch timeout", modify: func(c *Config) { c.Fetch.Timeout = time.Millisecond }, errMsg: "fetch timeouts"},
		{name: "negative threshold", modify: func(c *Config) { c.Extraction.Readability = -1 }, errMsg: "extraction thresholds"},
		{name: "caption budget", modify: func(c *Config) { c.Caption.Budget = -5 }, errMsg: "caption budget"},
		{name: "workers", modify: func(c *Config) { c.Pipeline.Workers = -1 }, errMsg: "workers"},
		{name: "max items", modify: func(c *Config) { c.Pipeline.MaxItems = -1 }, errMsg: "max_items"},
		{name: "llm key", modify: func(c *Config) { c.LLM.Enabled = true }, errMsg: "llm.api_key"},
		{name: "llm temperature", modify: func(c *Config) { c.LLM.Enabled, c.LLM.APIKey, c.LLM.Temperature = true, "k", 3 }, errMsg: "llm.temperature"},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("llm disabled skips llm checks", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.Temperature = 5
		assert.NoError(t, validate(cfg))
	})
}
