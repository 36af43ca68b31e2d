// Package config provides application configuration structures and utilities.
package config

import (
	"os"
	"path/filepath"
)

// getuid is the function used to retrieve the current user ID.
// It is a variable to allow tests to simulate root/non-root environments.
var getuid = os.Getuid

// DefaultQueueDepth is used for per-actor inbox channels when Config.QueueDepth is unset.
const DefaultQueueDepth = 64

// DefaultGuardQueueDepth is used for the GuardRegistry actor's inbox when Config.GuardQueueDepth is unset.
// Each Guard's own control channel has a fixed capacity that this setting does not change.
const DefaultGuardQueueDepth = 8

// Config represents the application configuration loaded from a YAML file
// merged with flags via spf13/viper.
type Config struct {
	Verbose  bool `yaml:"verbose,omitempty"`
	UserMode bool `yaml:"userMode,omitempty"`

	QueueDepth      int `yaml:"queueDepth,omitempty"`
	GuardQueueDepth int `yaml:"guardQueueDepth,omitempty"`

	UnitDefsPath string `yaml:"unitDefsPath,omitempty"`
	DBPath       string `yaml:"dbPath,omitempty"`
}

// IsUserMode returns true if running as non-root user (uid != 0), or if the
// config forces user mode explicitly.
func (c *Config) IsUserMode() bool {
	return c.UserMode || getuid() != 0
}

// GetQueueDepth returns the configured per-actor inbox capacity, or the
// default if unset.
func (c *Config) GetQueueDepth() int {
	if c.QueueDepth > 0 {
		return c.QueueDepth
	}
	return DefaultQueueDepth
}

// GetGuardQueueDepth returns the configured GuardRegistry inbox
// capacity, or the default if unset.
func (c *Config) GetGuardQueueDepth() int {
	if c.GuardQueueDepth > 0 {
		return c.GuardQueueDepth
	}
	return DefaultGuardQueueDepth
}

// GetUnitDefsPath returns the on-disk unit-definition directory, using the
// default based on user mode if not configured.
func (c *Config) GetUnitDefsPath() string {
	if c.UnitDefsPath != "" {
		return c.UnitDefsPath
	}
	if c.IsUserMode() {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config/unitd/units")
	}
	return "/etc/unitd/units"
}

// GetDBPath returns the sqlite path for the unit-definition repository,
// using the default based on user mode if not configured.
func (c *Config) GetDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if c.IsUserMode() {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local/share/unitd/unitd.db")
	}
	return "/var/lib/unitd/unitd.db"
}
