// Package config loads osmdag settings from YAML files and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nasdf/osmdag/storage"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPath overrides the database path.
	EnvPath = "OSMDAG_PATH"
	// EnvBackend overrides the storage backend.
	EnvBackend = "OSMDAG_BACKEND"
	// EnvListen overrides the http listen address.
	EnvListen = "OSMDAG_LISTEN"
)

// Config contains all settings needed to open a db.
type Config struct {
	// Path is the directory database files are stored in.
	Path string `yaml:"path"`
	// Backend is one of pebble, badger, or memory.
	Backend string `yaml:"backend"`
	// SyncWrites flushes every write to disk.
	SyncWrites bool `yaml:"sync_writes"`
	// CacheSize is the number of decoded log entries kept in memory.
	CacheSize int `yaml:"cache_size"`
	// LogLevel is one of debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
	// Listen is the address the http server binds to.
	Listen string `yaml:"listen"`
}

// Default returns the default config.
func Default() Config {
	return Config{
		Path:      "osmdag-data",
		Backend:   storage.BackendPebble,
		CacheSize: 4096,
		LogLevel:  "info",
		Listen:    "localhost:8080",
	}
}

// Load returns the config from the file at the given path merged over the defaults.
//
// An empty path skips the file. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Validate returns an error if the config contains invalid values.
func (c Config) Validate() error {
	switch c.Backend {
	case storage.BackendPebble, storage.BackendBadger, storage.BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q", c.Backend)
	}
	if c.Backend != storage.BackendMemory && c.Path == "" {
		return fmt.Errorf("path is required for backend %s", c.Backend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return level, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// Storage returns the storage options described by the config.
func (c Config) Storage(logger *slog.Logger) storage.Options {
	return storage.Options{
		Path:       c.Path,
		InMemory:   c.Backend == storage.BackendMemory,
		SyncWrites: c.SyncWrites,
		Logger:     logger,
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvPath); ok {
		c.Path = v
	}
	if v, ok := os.LookupEnv(EnvBackend); ok {
		c.Backend = v
	}
	if v, ok := os.LookupEnv(EnvListen); ok {
		c.Listen = v
	}
}
