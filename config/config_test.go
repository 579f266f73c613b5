package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nasdf/osmdag/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmdag.yaml")
	data := []byte("path: /var/lib/osmdag\nbackend: badger\nsync_writes: true\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/osmdag", cfg.Path)
	assert.Equal(t, storage.BackendBadger, cfg.Backend)
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, 4096, cfg.CacheSize)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvBackend, storage.BackendMemory)
	t.Setenv(EnvPath, "")
	t.Setenv(EnvListen, ":9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, storage.BackendMemory, cfg.Backend)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.True(t, cfg.Storage(nil).InMemory)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend = "sqlite" }},
		{"path", func(c *Config) { c.Path = "" }},
		{"level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
