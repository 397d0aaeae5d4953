package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmynk/billbuddy/internal/conflict"
	"github.com/mmynk/billbuddy/internal/queue"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds the local sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SyncConfig says where and as whom the device syncs.
// An empty RemoteURL keeps the device offline-only.
type SyncConfig struct {
	RemoteURL     string        `mapstructure:"remote_url"`
	UserID        string        `mapstructure:"user_id"`
	Token         string        `mapstructure:"token"`
	Strategy      string        `mapstructure:"strategy"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// RetryConfig holds the backoff policy for remote calls.
type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// ServerConfig holds sync server settings.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	DatabasePath string `mapstructure:"database_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and env. Env var overrides use prefix BILLBUDDY_.
// The file is $BILLBUDDY_CONFIG if set, else ~/.config/billbuddy/config.toml.
func Load() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")
	defaults := queue.DefaultRetryConfig()

	// default values
	v.SetDefault("database.path", filepath.Join(home, ".local", "share", "billbuddy", "billbuddy.db"))
	v.SetDefault("sync.remote_url", "")
	v.SetDefault("sync.user_id", "")
	v.SetDefault("sync.token", "")
	v.SetDefault("sync.strategy", string(conflict.DefaultStrategy))
	v.SetDefault("sync.probe_interval", 30*time.Second)
	v.SetDefault("retry.initial_delay", defaults.InitialDelay)
	v.SetDefault("retry.multiplier", defaults.Multiplier)
	v.SetDefault("retry.max_delay", defaults.MaxDelay)
	v.SetDefault("retry.max_retries", defaults.MaxRetries)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.database_path", "./data/sync.db")
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BILLBUDDY_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "billbuddy"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BILLBUDDY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default file is fine; a named file must exist.
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be specified")
	}
	if _, err := conflict.ParseStrategy(c.Sync.Strategy); err != nil {
		return fmt.Errorf("sync.strategy: %w", err)
	}
	if c.Sync.RemoteURL != "" && c.Sync.UserID == "" {
		return fmt.Errorf("sync.user_id is required when sync.remote_url is set")
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry delays must satisfy 0 < initial_delay <= max_delay")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	return nil
}

// ConflictStrategy returns the parsed strategy, falling back to the default.
func (c SyncConfig) ConflictStrategy() conflict.Strategy {
	s, err := conflict.ParseStrategy(c.Strategy)
	if err != nil {
		return conflict.DefaultStrategy
	}
	return s
}

// Policy converts the settings into a queue.RetryConfig.
func (r RetryConfig) Policy() queue.RetryConfig {
	return queue.RetryConfig{
		InitialDelay: r.InitialDelay,
		Multiplier:   r.Multiplier,
		MaxDelay:     r.MaxDelay,
		MaxRetries:   r.MaxRetries,
	}
}
