// Package config handles soopchat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from -config) is checked first. Then: ./soopchat.yaml,
// ~/.config/soopchat/soopchat.yaml, /etc/soopchat/soopchat.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"soopchat.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "soopchat", "soopchat.yaml"))
	}

	paths = append(paths, "/etc/soopchat/soopchat.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all soopchat configuration.
type Config struct {
	Room               RoomConfig `yaml:"room"`
	InsecureSkipVerify bool       `yaml:"insecure_skip_verify"`
	PingIntervalSec    int        `yaml:"ping_interval_sec"`
	LogLevel           string     `yaml:"log_level"`
}

// RoomConfig defines which room the CLI watches by default.
type RoomConfig struct {
	ID string `yaml:"id"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, ping_interval_sec is
// positive and log_level is empty or a valid level; room.id may still
// be empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${SOOPCHAT_ROOM_ID}). A
	// convenience for container deployments; values can also be put
	// directly in the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. Only ping_interval_sec has a default
// (60); room.id and log_level stay empty when unset, and an empty
// log_level parses as info.
func (c *Config) applyDefaults() {
	if c.PingIntervalSec == 0 {
		c.PingIntervalSec = 60
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.PingIntervalSec < 1 {
		return fmt.Errorf("ping_interval_sec %d must be positive", c.PingIntervalSec)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration with no room preselected.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
