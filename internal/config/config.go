// Package config manages agentmerge configuration and the .agentmerge directory.
// It handles loading, saving, and initializing the engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/store"
	"github.com/pelletier/go-toml/v2"
)

const (
	Dir        = ".agentmerge"
	ConfigFile = "config"
	StateFile  = "state.db"
)

// Config represents the agentmerge configuration
type Config struct {
	IgnoreWhitespace  bool   `toml:"ignore_whitespace"`
	AutoResolveSimple bool   `toml:"auto_resolve_simple"`
	RollbackRetention string `toml:"rollback_retention"` // Go duration, e.g. "24h"
	CleanupMaxAge     string `toml:"cleanup_max_age"`    // Go duration, e.g. "168h"
	Backend           string `toml:"backend"`            // "bbolt" or "sqlite"
	path              string // path to .agentmerge directory
}

// Default returns the configuration written by Initialize
func Default() *Config {
	return &Config{
		AutoResolveSimple: true,
		RollbackRetention: core.DefaultRollbackRetention.String(),
		CleanupMaxAge:     core.DefaultCleanupMaxAge.String(),
		Backend:           store.BackendBbolt,
	}
}

// FindRoot finds the .agentmerge directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, Dir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not an agentmerge workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the nearest .agentmerge directory
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration from the given .agentmerge directory
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.path = root
	return cfg, nil
}

// Validate checks durations and the backend name
func (c *Config) Validate() error {
	if _, err := parseDuration(c.RollbackRetention, "rollback_retention"); err != nil {
		return err
	}
	if _, err := parseDuration(c.CleanupMaxAge, "cleanup_max_age"); err != nil {
		return err
	}
	switch c.Backend {
	case "", store.BackendBbolt, store.BackendSQLite:
		return nil
	default:
		return fmt.Errorf("invalid backend %q: must be %q or %q", c.Backend, store.BackendBbolt, store.BackendSQLite)
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .agentmerge directory
func (c *Config) Path() string {
	return c.path
}

// StatePath returns the path to the state database
func (c *Config) StatePath() string {
	return filepath.Join(c.path, StateFile)
}

// RollbackRetentionDuration returns the parsed rollback window
func (c *Config) RollbackRetentionDuration() time.Duration {
	d, _ := parseDuration(c.RollbackRetention, "rollback_retention")
	if d <= 0 {
		return core.DefaultRollbackRetention
	}
	return d
}

// CleanupMaxAgeDuration returns the parsed retention for resolved conflicts
func (c *Config) CleanupMaxAgeDuration() time.Duration {
	d, _ := parseDuration(c.CleanupMaxAge, "cleanup_max_age")
	if d <= 0 {
		return core.DefaultCleanupMaxAge
	}
	return d
}

// EngineOptions converts the configuration to resolver options
func (c *Config) EngineOptions() core.Options {
	opts := core.DefaultOptions()
	opts.IgnoreWhitespace = c.IgnoreWhitespace
	opts.AutoResolveSimple = c.AutoResolveSimple
	opts.RollbackRetention = c.RollbackRetentionDuration()
	return opts
}

// Initialize creates a new .agentmerge directory in dir with the default configuration
func Initialize(dir string) (*Config, error) {
	root := filepath.Join(dir, Dir)

	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("agentmerge workspace already exists")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	cfg := Default()
	cfg.path = root

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}

func parseDuration(s, key string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}
