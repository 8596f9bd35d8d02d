package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides cfg from environment variables
//
// Environment variables:
//   - PROFASSIST_PROVIDER: anthropic or openai
//   - PROFASSIST_MODEL: provider model id
//   - PROFASSIST_BASE_URL: OpenAI-compatible endpoint
//   - PROFASSIST_MAX_TOKENS: max tokens per generation call
//   - PROFASSIST_APPROVAL_THRESHOLD: score that approves a draft (default: 0.8)
//   - PROFASSIST_MAX_RETRIES: evaluation budget per turn (default: 3)
//   - PROFASSIST_MIN_IMPROVEMENT: plateau threshold (default: 0.05)
//   - PROFASSIST_MAX_TOOL_ROUNDS: tool exchanges per generation phase (default: 4)
//   - PROFASSIST_TURN_TIMEOUT: bound on a whole turn, e.g. 10m
//   - PROFASSIST_NO_WAIT: fail instead of waiting on a busy conversation
//   - PROFASSIST_WEB_SEARCH: enable web search (default: true)
//   - PROFASSIST_WIKIPEDIA: enable Wikipedia search (default: true)
//   - PROFASSIST_WIKIPEDIA_LANGUAGE: Wikipedia edition (default: en)
//   - PROFASSIST_TOOL_RPS: outbound search requests per second (default: 2)
//   - PROFASSIST_STORAGE: memory, sqlite or badger
//   - PROFASSIST_DB: database file or directory
//   - PROFASSIST_METRICS_ADDR: Prometheus listen address
//   - PROFASSIST_LOG_LEVEL: debug, info, warn or error
//   - PROFASSIST_LOG_FORMAT: text or json
//
// Returns an error if any environment variable has an invalid value.
func ApplyEnv(cfg *Config) error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"PROFASSIST_PROVIDER", &cfg.Model.Provider},
		{"PROFASSIST_MODEL", &cfg.Model.Model},
		{"PROFASSIST_BASE_URL", &cfg.Model.BaseURL},
		{"PROFASSIST_WIKIPEDIA_LANGUAGE", &cfg.Tools.WikipediaLanguage},
		{"PROFASSIST_STORAGE", &cfg.Storage.Backend},
		{"PROFASSIST_DB", &cfg.Storage.Path},
		{"PROFASSIST_METRICS_ADDR", &cfg.Metrics.Addr},
		{"PROFASSIST_LOG_LEVEL", &cfg.Log.Level},
		{"PROFASSIST_LOG_FORMAT", &cfg.Log.Format},
	}
	for _, s := range strs {
		if err := parseEnvString(s.key, s.dest); err != nil {
			return err
		}
	}

	if err := parseEnvInt("PROFASSIST_MAX_TOKENS", &cfg.Model.MaxTokens); err != nil {
		return err
	}
	if err := parseEnvFloat("PROFASSIST_APPROVAL_THRESHOLD", &cfg.Loop.ApprovalThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("PROFASSIST_MAX_RETRIES", &cfg.Loop.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvFloat("PROFASSIST_MIN_IMPROVEMENT", &cfg.Loop.MinImprovement); err != nil {
		return err
	}
	if err := parseEnvInt("PROFASSIST_MAX_TOOL_ROUNDS", &cfg.Loop.MaxToolRounds); err != nil {
		return err
	}
	if err := parseEnvDuration("PROFASSIST_TURN_TIMEOUT", &cfg.Loop.TurnTimeout); err != nil {
		return err
	}
	if err := parseEnvBool("PROFASSIST_NO_WAIT", &cfg.Loop.NoWait); err != nil {
		return err
	}
	if err := parseEnvBool("PROFASSIST_WEB_SEARCH", &cfg.Tools.WebSearch); err != nil {
		return err
	}
	if err := parseEnvBool("PROFASSIST_WIKIPEDIA", &cfg.Tools.Wikipedia); err != nil {
		return err
	}
	if err := parseEnvFloat("PROFASSIST_TOOL_RPS", &cfg.Tools.RequestsPerSecond); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a time.Duration from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
