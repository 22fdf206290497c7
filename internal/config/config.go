// ABOUTME: Configuration loading and parsing for the opdesk console
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete opdesk configuration
type Config struct {
	Platform PlatformConfig `yaml:"platform"`
	History  HistoryConfig  `yaml:"history"`
	Drafts   DraftsConfig   `yaml:"drafts"`
	Typing   TypingConfig   `yaml:"typing"`
	Scroll   ScrollConfig   `yaml:"scroll"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PlatformConfig holds the support platform's endpoints and credentials
type PlatformConfig struct {
	BaseURL   string `yaml:"base_url"`
	SocketURL string `yaml:"socket_url"`
	AgentID   string `yaml:"agent_id"`
	Token     string `yaml:"token"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// HistoryConfig holds pagination configuration
type HistoryConfig struct {
	PageLimit int `yaml:"page_limit"`
}

// DraftsConfig holds draft persistence configuration
type DraftsConfig struct {
	Path string `yaml:"path"`

	AutosaveDebounce     time.Duration `yaml:"-"`
	SuppressionWindow    time.Duration `yaml:"-"`
	AutosaveDebounceRaw  string        `yaml:"autosave_debounce"`
	SuppressionWindowRaw string        `yaml:"suppression_window"`
}

// TypingConfig holds typing indicator configuration
type TypingConfig struct {
	IdleTimeout    time.Duration `yaml:"-"`
	IdleTimeoutRaw string        `yaml:"idle_timeout"`
}

// ScrollConfig holds viewport threshold configuration, in pixels
type ScrollConfig struct {
	EdgeThreshold int `yaml:"edge_threshold"`
	TopThreshold  int `yaml:"top_threshold"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.SocketURL == "" {
		return fmt.Errorf("platform.socket_url is required")
	}
	if c.Platform.AgentID == "" {
		return fmt.Errorf("platform.agent_id is required")
	}
	if c.Platform.Token == "" {
		return fmt.Errorf("platform.token is required")
	}

	if c.History.PageLimit < 0 {
		return fmt.Errorf("history.page_limit must not be negative")
	}
	if c.Scroll.EdgeThreshold < 0 || c.Scroll.TopThreshold < 0 {
		return fmt.Errorf("scroll thresholds must not be negative")
	}

	if c.Drafts.Path == "" {
		return fmt.Errorf("drafts.path is required")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Platform.RequestTimeoutRaw != "" {
		cfg.Platform.RequestTimeout, err = time.ParseDuration(cfg.Platform.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Platform.RequestTimeoutRaw, err)
		}
	}

	if cfg.Drafts.AutosaveDebounceRaw != "" {
		cfg.Drafts.AutosaveDebounce, err = time.ParseDuration(cfg.Drafts.AutosaveDebounceRaw)
		if err != nil {
			return fmt.Errorf("parsing autosave_debounce %q: %w", cfg.Drafts.AutosaveDebounceRaw, err)
		}
	}

	if cfg.Drafts.SuppressionWindowRaw != "" {
		cfg.Drafts.SuppressionWindow, err = time.ParseDuration(cfg.Drafts.SuppressionWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing suppression_window %q: %w", cfg.Drafts.SuppressionWindowRaw, err)
		}
	}

	if cfg.Typing.IdleTimeoutRaw != "" {
		cfg.Typing.IdleTimeout, err = time.ParseDuration(cfg.Typing.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Typing.IdleTimeoutRaw, err)
		}
	}

	return nil
}
