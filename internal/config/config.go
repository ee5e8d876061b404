// Package config loads intentforge configuration from YAML with environment
// overrides. Missing files fall back to defaults so the engine can boot with
// zero setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all intentforge configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Search provider configuration
	Search SearchConfig `yaml:"search"`

	// Session store configuration
	Session SessionConfig `yaml:"session"`

	// Grounding decision and cache configuration
	Grounding GroundingConfig `yaml:"grounding"`

	// Quality validator configuration
	Validator ValidatorConfig `yaml:"validator"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the coach LLM port.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // gemini, null
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// SearchConfig configures the grounding search port.
type SearchConfig struct {
	Provider   string `yaml:"provider"` // http, null
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxResults int    `yaml:"max_results"`
}

// SessionConfig configures the session store and per-session budgets.
type SessionConfig struct {
	TTL          string `yaml:"ttl"`
	MaxTurns     int    `yaml:"max_turns"`
	MaxTokensIn  int    `yaml:"max_tokens_in"`
	MaxTokensOut int    `yaml:"max_tokens_out"`
	DataDir      string `yaml:"data_dir"`    // badger directory
	MirrorPath   string `yaml:"mirror_path"` // sqlite analytics mirror, empty disables
}

// GroundingConfig configures the grounding decision engine and cache.
type GroundingConfig struct {
	// Topics with fast-changing live content (short cache TTL, fast-path
	// grounding when paired with recency cues).
	FastTopics []string `yaml:"fast_topics"`
	// Topics with stable content (long cache TTL).
	StableTopics []string `yaml:"stable_topics"`

	TTLShort  string `yaml:"ttl_short"`
	TTLMedium string `yaml:"ttl_medium"`
	TTLLong   string `yaml:"ttl_long"`

	// AssessmentCacheTTL bounds reuse of prior should-ground decisions.
	AssessmentCacheTTL string `yaml:"assessment_cache_ttl"`
}

// ValidatorConfig configures the quality validator length bounds.
type ValidatorConfig struct {
	MinWords    int `yaml:"min_words"`
	MaxWords    int `yaml:"max_words"`
	MaxWarnings int `yaml:"max_warnings"` // warnings allowed while still generation-ready
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`      // write category log files under .forge/logs
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, text
	Categories map[string]bool `yaml:"categories"` // nil enables all categories
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "intentforge",
		Version: "0.4.0",

		LLM: LLMConfig{
			Provider:        "null",
			Model:           "gemini-2.0-flash",
			Timeout:         "120s",
			MaxOutputTokens: 2048,
		},

		Search: SearchConfig{
			Provider:   "null",
			Timeout:    "15s",
			MaxResults: 5,
		},

		Session: SessionConfig{
			TTL:          "30m",
			MaxTurns:     20,
			MaxTokensIn:  60000,
			MaxTokensOut: 30000,
			DataDir:      "data/forge",
			MirrorPath:   "data/forge-analytics.db",
		},

		Grounding: GroundingConfig{
			FastTopics: []string{
				"fortnite", "valorant", "league of legends", "apex legends",
				"minecraft", "roblox", "call of duty", "overwatch",
			},
			StableTopics: []string{
				"color theory", "composition", "typography", "art style",
			},
			TTLShort:           "15m",
			TTLMedium:          "6h",
			TTLLong:            "72h",
			AssessmentCacheTTL: "5m",
		},

		Validator: ValidatorConfig{
			MinWords:    4,
			MaxWords:    120,
			MaxWarnings: 2,
		},

		Logging: LoggingConfig{
			Debug:  false,
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "null" {
			c.LLM.Provider = "gemini"
		}
	}
	if url := os.Getenv("FORGE_SEARCH_URL"); url != "" {
		c.Search.BaseURL = url
		if c.Search.Provider == "null" {
			c.Search.Provider = "http"
		}
	}
	if dir := os.Getenv("FORGE_DATA_DIR"); dir != "" {
		c.Session.DataDir = dir
	}
	if path := os.Getenv("FORGE_MIRROR_DB"); path != "" {
		c.Session.MirrorPath = path
	}
}

// durationOr parses d, returning fallback on any parse error.
func durationOr(d string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return parsed
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return durationOr(c.LLM.Timeout, 120*time.Second)
}

// GetSearchTimeout returns the search provider timeout as a duration.
func (c *Config) GetSearchTimeout() time.Duration {
	return durationOr(c.Search.Timeout, 15*time.Second)
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return durationOr(c.Session.TTL, 30*time.Minute)
}

// GetGroundingTTLs returns the short/medium/long cache TTL tiers.
func (c *Config) GetGroundingTTLs() (short, medium, long time.Duration) {
	return durationOr(c.Grounding.TTLShort, 15*time.Minute),
		durationOr(c.Grounding.TTLMedium, 6*time.Hour),
		durationOr(c.Grounding.TTLLong, 72*time.Hour)
}

// GetAssessmentCacheTTL returns the decision-reuse window.
func (c *Config) GetAssessmentCacheTTL() time.Duration {
	return durationOr(c.Grounding.AssessmentCacheTTL, 5*time.Minute)
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "null":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Search.Provider {
	case "http", "null":
	default:
		return fmt.Errorf("unknown search provider: %q", c.Search.Provider)
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm provider %q requires an API key", c.LLM.Provider)
	}
	if c.Session.MaxTurns <= 0 {
		return fmt.Errorf("session max_turns must be positive, got %d", c.Session.MaxTurns)
	}
	if c.Validator.MinWords <= 0 || c.Validator.MaxWords <= c.Validator.MinWords {
		return fmt.Errorf("validator word bounds invalid: min=%d max=%d",
			c.Validator.MinWords, c.Validator.MaxWords)
	}
	return nil
}
