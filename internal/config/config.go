package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a bootforge invocation.
// Values are populated from .bootforge.yaml, BOOTFORGE_* env vars, and CLI flags.
type Config struct {
	Inventory   string `mapstructure:"inventory"`
	Settings    string `mapstructure:"settings"`
	LogLevel    string `mapstructure:"log_level"`
	Events      string `mapstructure:"events"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	Lazy        bool   `mapstructure:"lazy"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("inventory", "inventory.toml")
	viper.SetDefault("settings", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("events", "")
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("lazy", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("config: log_level: %w", err)
	}
	return cfg, nil
}

// Level returns the parsed log level; Load has already validated it.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
