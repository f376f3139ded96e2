// Package config loads bridge settings from file, environment, and .env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Listen    ListenConfig
	Speckle   SpeckleConfig
	Selection SelectionConfig
}

// ListenConfig holds the HTTP bind settings.
type ListenConfig struct {
	Addr string
}

// SpeckleConfig holds server and auth settings.
type SpeckleConfig struct {
	Server string
	Token  string
	// InitialModel is loaded at startup when set, before any host message.
	InitialModel string `mapstructure:"initial_model"`
}

// SelectionConfig holds the selection poll settings.
type SelectionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// SPECKLE_BRIDGE_. A .env file in the working directory is read first so
// SPECKLE_TOKEN can live there, matching the upstream tooling convention.
func Load() (Config, error) {
	// Best effort; absence of a .env file is the common case.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("listen.addr", "127.0.0.1:7878")
	v.SetDefault("speckle.server", "https://app.speckle.systems")
	v.SetDefault("speckle.token", "")
	v.SetDefault("speckle.initial_model", "")
	v.SetDefault("selection.poll_interval", 750*time.Millisecond)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SPECKLE_BRIDGE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "speckle-viewer-bridge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SPECKLE_BRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// SPECKLE_TOKEN is what the rest of the Speckle tooling expects; honor it
	// when the prefixed variable is not set.
	if c.Speckle.Token == "" {
		c.Speckle.Token = os.Getenv("SPECKLE_TOKEN")
	}

	return c, nil
}
