package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billbuddy/internal/conflict"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BILLBUDDY_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local", "share", "billbuddy", "billbuddy.db"), cfg.Database.Path)
	assert.Equal(t, conflict.StrategyLocal, cfg.Sync.ConflictStrategy())
	assert.Equal(t, "", cfg.Sync.RemoteURL)

	policy := cfg.Retry.Policy()
	assert.Equal(t, time.Second, policy.InitialDelay)
	assert.Equal(t, 10*time.Second, policy.MaxDelay)
	assert.Equal(t, 2.0, policy.Multiplier)
	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "billbuddy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/tmp/ledger.db"

[sync]
remote_url = "http://localhost:8080"
user_id = "shop-1"
strategy = "remote"

[retry]
initial_delay = "250ms"
max_delay = "2s"
`), 0o600))
	t.Setenv("BILLBUDDY_CONFIG", path)
	t.Setenv("BILLBUDDY_SYNC_STRATEGY", "merge")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	assert.Equal(t, "shop-1", cfg.Sync.UserID)
	assert.Equal(t, conflict.StrategyMerge, cfg.Sync.ConflictStrategy(), "env overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoad_NamedFileMustExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BILLBUDDY_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "ledger.db"},
			Retry:    RetryConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second, MaxRetries: 3},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no database", func(c *Config) { c.Database.Path = "" }, false},
		{"unknown strategy", func(c *Config) { c.Sync.Strategy = "newest" }, false},
		{"remote without user", func(c *Config) { c.Sync.RemoteURL = "http://x" }, false},
		{"max below initial", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, false},
		{"shrinking multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, false},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
