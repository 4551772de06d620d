// Package config loads layered client configuration: built-in defaults,
// then an optional YAML file under the user's config dir, then PD_-prefixed
// environment variables. The same binary works with a config file on a
// workstation and with pure env in CI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration.
type Config struct {
	// Endpoint is the GraphQL API URL.
	Endpoint string `mapstructure:"endpoint"`
	// DataDir holds the session database and keyfile.
	DataDir string `mapstructure:"data_dir"`
	// RequestTimeout bounds each GraphQL call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`
	// RememberMe makes login persist the user snapshot by default.
	RememberMe bool `mapstructure:"remember_me"`
}

// Dir returns the client config directory ($XDG_CONFIG_HOME/parishdesk or
// ~/.config/parishdesk).
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "parishdesk")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "parishdesk")
}

// Load reads the layered configuration.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("endpoint", "https://api.parishdesk.app/graphql")
	v.SetDefault("data_dir", Dir())
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "warn")
	v.SetDefault("remember_me", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(Dir())

	v.SetEnvPrefix("PD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &cfg, nil
}
