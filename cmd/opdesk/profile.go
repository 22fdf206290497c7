// ABOUTME: Operator profile loading for the opdesk console
// ABOUTME: Loads TOML profile from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile holds per-operator console preferences. Everything in it is
// optional; a missing file yields the defaults.
type Profile struct {
	Operator OperatorProfile `toml:"operator"`
	Display  DisplayProfile  `toml:"display"`
}

type OperatorProfile struct {
	Name string `toml:"name"`
}

type DisplayProfile struct {
	Timestamps bool `toml:"timestamps"`
	Truncate   int  `toml:"truncate"`
}

func defaultProfile() *Profile {
	return &Profile{
		Operator: OperatorProfile{Name: "operator"},
		Display:  DisplayProfile{Timestamps: true, Truncate: 200},
	}
}

// defaultProfilePath returns XDG_CONFIG_HOME/opdesk/profile.toml,
// falling back to ~/.config/opdesk/profile.toml.
func defaultProfilePath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "profile.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "opdesk", "profile.toml")
}

// loadProfile reads the profile from the given path, expanding
// environment variables. A missing file is not an error.
func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	cfg := defaultProfile()
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if cfg.Display.Truncate <= 0 {
		cfg.Display.Truncate = 200
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
