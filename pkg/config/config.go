// Package config loads clipvault settings from an optional YAML file at
// ~/.clipvault/config.yaml. A missing file yields defaults; command-line flags
// override whatever the file provides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollIntervalMS is how often the daemon samples the clipboard.
	DefaultPollIntervalMS = 250

	// DefaultServePort is the TCP port for the remote clipboard listener.
	DefaultServePort = 7779
)

// Config holds all user-tunable settings.
type Config struct {
	// StorageDir overrides the default history location.
	StorageDir string `yaml:"storage_dir"`

	// MaxEntries is the retention bound for unpinned history entries.
	MaxEntries int `yaml:"max_entries"`

	// PollIntervalMS is the daemon's clipboard sampling period in milliseconds.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// Exclude lists glob patterns matched against clipboard content; matching
	// clips are never recorded (e.g. "*PRIVATE KEY*", "*password*").
	Exclude []string `yaml:"exclude"`

	// ServePort is the port the TCP listener binds on 127.0.0.1.
	ServePort int `yaml:"serve_port"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxEntries:     0, // 0 means "use the storage default"
		PollIntervalMS: DefaultPollIntervalMS,
		ServePort:      DefaultServePort,
	}
}

// DefaultPath returns ~/.clipvault/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".clipvault", "config.yaml")
}

// Load reads settings from path, or from DefaultPath when path is empty. A
// missing file is not an error; a present but malformed file is, since silently
// ignoring explicit configuration would be worse than failing.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = DefaultPollIntervalMS
	}
	if cfg.ServePort <= 0 || cfg.ServePort > 65535 {
		cfg.ServePort = DefaultServePort
	}

	return cfg, nil
}

// PollInterval returns the daemon sampling period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
