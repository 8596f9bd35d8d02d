// Package config loads profassist settings from defaults, an optional YAML
// file and PROFASSIST_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/iterative"
	"github.com/gabormeresz/profAssistant-sub000/internal/logging"
	"github.com/gabormeresz/profAssistant-sub000/internal/storage"
	"github.com/gabormeresz/profAssistant-sub000/internal/tools"
)

// Config is the complete runtime configuration
type Config struct {
	Model   ModelConfig          `yaml:"model"`
	Loop    iterative.LoopConfig `yaml:"loop"`
	Retry   ai.RetryConfig       `yaml:"retry"`
	Tools   ToolsConfig          `yaml:"tools"`
	Storage storage.Config       `yaml:"storage"`
	Metrics MetricsConfig        `yaml:"metrics"`
	Log     logging.Config       `yaml:"log"`
}

// ModelConfig selects the model provider
type ModelConfig struct {
	// Provider is anthropic or openai
	// Default: anthropic
	Provider string `yaml:"provider"`

	// Model is the provider model id. Empty uses the provider default.
	Model string `yaml:"model"`

	// APIKey falls back to ANTHROPIC_API_KEY or OPENAI_API_KEY
	APIKey string `yaml:"api_key"`

	// BaseURL points the openai provider at a compatible endpoint
	BaseURL string `yaml:"base_url"`

	// MaxTokens bounds each generation call
	// Default: 4096, Range: 256-32768
	MaxTokens int `yaml:"max_tokens"`
}

// ToolsConfig controls the research tools offered to the model
type ToolsConfig struct {
	// WebSearch enables the web_search tool
	// Default: true
	WebSearch bool `yaml:"web_search"`

	// Wikipedia enables the wikipedia_search tool
	// Default: true
	Wikipedia bool `yaml:"wikipedia"`

	// WikipediaLanguage is the Wikipedia edition to search
	// Default: en
	WikipediaLanguage string `yaml:"wikipedia_language"`

	// RequestsPerSecond rate-limits outbound search requests, 0 for unlimited
	// Default: 2
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// HTTPTimeout bounds each search request
	// Default: 15s
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// MaxResults is how many hits each search returns
	// Default: 5, Range: 1-20
	MaxResults int `yaml:"max_results"`

	// MaxResultTokens truncates each tool result
	// Default: 1500, Range: 100-8000
	MaxResultTokens int `yaml:"max_result_tokens"`

	// CacheSize is the number of cached tool results, 0 disables caching
	// Default: 256
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is how long a cached result stays valid
	// Default: 10m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	cache := tools.DefaultCacheConfig()
	return Config{
		Model: ModelConfig{
			Provider:  ai.ProviderAnthropic,
			MaxTokens: 4096,
		},
		Loop:  iterative.DefaultLoopConfig(),
		Retry: ai.DefaultRetryConfig(),
		Tools: ToolsConfig{
			WebSearch:         true,
			Wikipedia:         true,
			WikipediaLanguage: "en",
			RequestsPerSecond: 2,
			HTTPTimeout:       15 * time.Second,
			MaxResults:        5,
			MaxResultTokens:   tools.DefaultInvokerConfig().MaxResultTokens,
			CacheSize:         cache.MaxSize,
			CacheTTL:          cache.TTL,
		},
		Storage: storage.Config{
			Backend: storage.BackendSQLite,
			Path:    ".profassist/profassist.db",
		},
		Log: logging.DefaultConfig(),
	}
}

// Validate checks every section
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Loop.Validate(); err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c ModelConfig) Validate() error {
	switch strings.ToLower(c.Provider) {
	case ai.ProviderAnthropic, ai.ProviderOpenAI:
	default:
		return fmt.Errorf("provider must be 'anthropic' or 'openai' (got %q)", c.Provider)
	}
	if c.MaxTokens < 256 || c.MaxTokens > 32768 {
		return fmt.Errorf("max_tokens must be between 256 and 32768 (got %d)", c.MaxTokens)
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c ToolsConfig) Validate() error {
	if c.Wikipedia && strings.TrimSpace(c.WikipediaLanguage) == "" {
		return fmt.Errorf("wikipedia_language is required when wikipedia is enabled")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative (got %f)", c.RequestsPerSecond)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive (got %v)", c.HTTPTimeout)
	}
	if c.MaxResults < 1 || c.MaxResults > 20 {
		return fmt.Errorf("max_results must be between 1 and 20 (got %d)", c.MaxResults)
	}
	if c.MaxResultTokens < 100 || c.MaxResultTokens > 8000 {
		return fmt.Errorf("max_result_tokens must be between 100 and 8000 (got %d)", c.MaxResultTokens)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative (got %d)", c.CacheSize)
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive when caching is enabled (got %v)", c.CacheTTL)
	}
	return nil
}

// InvokerConfig maps the section onto the tool invoker settings
func (c ToolsConfig) InvokerConfig(observer tools.ToolObserver) tools.InvokerConfig {
	cache := tools.DefaultCacheConfig()
	cache.MaxSize = c.CacheSize
	if c.CacheSize == 0 {
		cache.MaxSize = -1
	}
	cache.TTL = c.CacheTTL
	return tools.InvokerConfig{
		MaxResultTokens: c.MaxResultTokens,
		Cache:           cache,
		Observer:        observer,
	}
}

// AIConfig maps the model and retry sections onto ai.Config
func (c Config) AIConfig(logger *slog.Logger) ai.Config {
	return ai.Config{
		Provider:  c.Model.Provider,
		APIKey:    c.Model.APIKey,
		Model:     c.Model.Model,
		BaseURL:   c.Model.BaseURL,
		MaxTokens: c.Model.MaxTokens,
		Retry:     c.Retry,
		Logger:    logger,
	}
}

// String returns a human-readable representation of the config. The API
// key is never printed.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Provider: %s, Model: %q, %s, Tools{WebSearch: %t, Wikipedia: %t, RPS: %.1f}, "+
			"Storage{%s %s}, Metrics: %q, Log: %s/%s}",
		c.Model.Provider, c.Model.Model, c.Loop, c.Tools.WebSearch, c.Tools.Wikipedia,
		c.Tools.RequestsPerSecond, c.Storage.Backend, c.Storage.Path, c.Metrics.Addr,
		c.Log.Level, c.Log.Format,
	)
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOptional is Load that treats a missing file as absent
func LoadOptional(path string) (Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}
