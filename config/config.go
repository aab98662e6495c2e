// Package config loads caseflow settings from an optional YAML file with
// CASEFLOW_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Agency   AgencyConfig   `mapstructure:"agency"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// AgencyConfig holds settings that affect business-day comparisons.
type AgencyConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configPath (when non-empty) and applies environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CASEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 16)
	v.SetDefault("database.max_conn_idle_time", "30s")
	v.SetDefault("database.max_conn_lifetime", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("agency.timezone", "UTC")

	v.SetDefault("metrics.addr", "")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must not be negative")
	}
	if _, err := c.Agency.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Location resolves the agency time zone used for "not in the past" checks.
func (a AgencyConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("agency.timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}
