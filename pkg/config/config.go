package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server" jsonschema:"description=HTTP server configuration"`
	Feed       FeedConfig       `yaml:"feed" json:"feed" jsonschema:"description=Feed source configuration"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch" jsonschema:"description=Article and image download configuration"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Text extraction thresholds"`
	Caption    CaptionConfig    `yaml:"caption" json:"caption" jsonschema:"description=Caption layout"`
	LLM        LLMConfig        `yaml:"llm" json:"llm" jsonschema:"description=Optional LLM summarizer for captions"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline" jsonschema:"description=Pipeline run configuration"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:5000,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server read/write timeout"`
}

// FeedConfig holds the default feed and the timezone used for date filtering
type FeedConfig struct {
	Source    string        `yaml:"source" json:"source" jsonschema:"default=https://feeds.feedburner.com/TheHackersNews?format=xml,description=Feed URL or local file"`
	Timezone  string        `yaml:"timezone" json:"timezone" jsonschema:"default=Asia/Kolkata,description=IANA zone or fixed offset like +05:30"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Feed download timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for feed requests"`
}

// FetchConfig holds article and image download settings
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=45s,description=Per-request timeout"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for article and image requests"`
	MaxBodySize int64         `yaml:"max_body_size" json:"max_body_size" jsonschema:"default=20971520,description=Maximum size of a downloaded resource in bytes"`
}

// ExtractionConfig holds minimum text length accepted from each extraction strategy
type ExtractionConfig struct {
	Primary     int `yaml:"primary" json:"primary" jsonschema:"default=400,minimum=0,description=Minimum characters for the selector based strategy"`
	Secondary   int `yaml:"secondary" json:"secondary" jsonschema:"default=600,minimum=0,description=Minimum characters for the text-node walk"`
	Readability int `yaml:"readability" json:"readability" jsonschema:"default=200,minimum=0,description=Minimum characters for the readability fallback"`
}

// CaptionConfig holds caption budget and hashtags
type CaptionConfig struct {
	Budget       int    `yaml:"budget" json:"budget" jsonschema:"default=3000,minimum=1,description=Maximum caption length in characters"`
	SummaryLimit int    `yaml:"summary_limit" json:"summary_limit" jsonschema:"default=900,minimum=1,description=Maximum summary length in characters"`
	Hashtags     string `yaml:"hashtags" json:"hashtags" jsonschema:"default=#cybersecurity #infosec #TheHackerNews,description=Line appended after the link"`
}

// LLMConfig holds the OpenAI-compatible summarizer settings
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Summarize articles with an LLM for captions"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"default=https://api.deepseek.com,description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"default=deepseek-chat,description=Model name"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.2,minimum=0,maximum=2,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=600,description=Maximum tokens in response"`
	Words       int           `yaml:"words" json:"words" jsonschema:"default=180,description=Target summary length in words"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=90s,description=Request timeout"`
	Attempts    int           `yaml:"attempts" json:"attempts" jsonschema:"default=3,minimum=1,description=Attempts per summary"`
}

// PipelineConfig holds run defaults
type PipelineConfig struct {
	OutputRoot string        `yaml:"output_root" json:"output_root" jsonschema:"default=./THN,description=Archive root directory"`
	Workers    int           `yaml:"workers" json:"workers" jsonschema:"default=4,minimum=1,description=Concurrent article workers"`
	MaxItems   int           `yaml:"max_items" json:"max_items" jsonschema:"default=0,minimum=0,description=Cap on processed entries, 0 for no cap"`
	RunTimeout time.Duration `yaml:"run_timeout" json:"run_timeout" jsonschema:"default=10m,description=Deadline for a whole run"`
	Overwrite  bool          `yaml:"overwrite" json:"overwrite" jsonschema:"default=false,description=Replace existing archive files instead of picking new names"`
}

const (
	defaultUserAgent = "thn-post-kit/2.0 (+https://thehackernews.com)"
	defaultHashtags  = "#cybersecurity #infosec #TheHackerNews"
)

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

func parse(data []byte) (*Config, error) {
	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":5000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// feed
	if c.Feed.Source == "" {
		c.Feed.Source = "https://feeds.feedburner.com/TheHackersNews?format=xml"
	}
	if c.Feed.Timezone == "" {
		c.Feed.Timezone = "Asia/Kolkata"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = defaultUserAgent
	}

	// fetch
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 45 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.MaxBodySize == 0 {
		c.Fetch.MaxBodySize = 20 << 20
	}

	// extraction
	if c.Extraction.Primary == 0 {
		c.Extraction.Primary = 400
	}
	if c.Extraction.Secondary == 0 {
		c.Extraction.Secondary = 600
	}
	if c.Extraction.Readability == 0 {
		c.Extraction.Readability = 200
	}

	// caption
	if c.Caption.Budget == 0 {
		c.Caption.Budget = 3000
	}
	if c.Caption.SummaryLimit == 0 {
		c.Caption.SummaryLimit = 900
	}
	if c.Caption.Hashtags == "" {
		c.Caption.Hashtags = defaultHashtags
	}

	// llm
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://api.deepseek.com"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "deepseek-chat"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 600
	}
	if c.LLM.Words == 0 {
		c.LLM.Words = 180
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 90 * time.Second
	}
	if c.LLM.Attempts == 0 {
		c.LLM.Attempts = 3
	}

	// pipeline
	if c.Pipeline.OutputRoot == "" {
		c.Pipeline.OutputRoot = "./THN"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.RunTimeout == 0 {
		c.Pipeline.RunTimeout = 10 * time.Minute
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return errors.New("server timeout must be at least 1 second")
	}
	if cfg.Feed.Timeout < time.Second || cfg.Fetch.Timeout < time.Second {
		return errors.New("feed and fetch timeouts must be at least 1 second")
	}
	if cfg.Fetch.MaxBodySize < 0 {
		return errors.New("fetch max_body_size must be non-negative")
	}
	if cfg.Extraction.Primary < 0 || cfg.Extraction.Secondary < 0 || cfg.Extraction.Readability < 0 {
		return errors.New("extraction thresholds must be non-negative")
	}
	if cfg.Caption.Budget < 1 || cfg.Caption.SummaryLimit < 1 {
		return errors.New("caption budget and summary_limit must be positive")
	}
	if cfg.Pipeline.Workers < 1 {
		return errors.New("pipeline workers must be at least 1")
	}
	if cfg.Pipeline.MaxItems < 0 {
		return errors.New("pipeline max_items must be non-negative")
	}

	if cfg.LLM.Enabled {
		if cfg.LLM.APIKey == "" {
			return errors.New("llm.api_key is required when llm is enabled")
		}
		if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
			return errors.New("llm.temperature must be between 0 and 2")
		}
		if cfg.LLM.Attempts < 1 {
			return errors.New("llm.attempts must be at least 1")
		}
	}
	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
