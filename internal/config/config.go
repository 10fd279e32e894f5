// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Routine  RoutineConfig  `mapstructure:"routine" yaml:"routine"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Notifier NotifierConfig `mapstructure:"notifier" yaml:"notifier"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// NetworkConfig tunes the portal-facing HTTP behavior.
//
// SlowRequestTimeout applies to the handful of calls that are slow on the
// platform side (login page fetch, login POST); everything else relies on
// transport-level defaults.
type NetworkConfig struct {
	SlowRequestTimeout time.Duration `mapstructure:"slow_request_timeout" yaml:"slow_request_timeout"`
	IgnoreTLSErrors    bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	RatePerSecond      float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	RateBurst          int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// RoutineConfig configures the multi-user processing run.
type RoutineConfig struct {
	ProfileDir  string `mapstructure:"profile_dir" yaml:"profile_dir"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	// Hours and Minute define when a --watch run fires, local time.
	Hours  []int `mapstructure:"hours" yaml:"hours"`
	Minute int   `mapstructure:"minute" yaml:"minute"`
}

// HistoryConfig configures the optional submission-history store.
type HistoryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DatabaseURL string `mapstructure:"database_url" yaml:"-"`
}

// NotifierConfig configures the outbound chat notifier.
type NotifierConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	TelegramToken  string `mapstructure:"telegram_token" yaml:"-"`
	OperatorChatID int64  `mapstructure:"operator_chat_id" yaml:"operator_chat_id"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "campusdaily")
	v.SetDefault("logger.log_file", "campusdaily.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Network --
	v.SetDefault("network.slow_request_timeout", "10s")
	v.SetDefault("network.ignore_tls_errors", true) // portals routinely run broken cert chains
	v.SetDefault("network.rate_per_second", 4.0)
	v.SetDefault("network.rate_burst", 4)

	// -- Routine --
	v.SetDefault("routine.profile_dir", "profiles")
	v.SetDefault("routine.concurrency", 3)
	v.SetDefault("routine.hours", []int{11, 12, 13, 14})
	v.SetDefault("routine.minute", 30)

	// -- History --
	v.SetDefault("history.enabled", false)

	// -- Notifier --
	v.SetDefault("notifier.enabled", false)
	v.SetDefault("notifier.operator_chat_id", 0)
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("history.database_url", "CAMPUSDAILY_DATABASE_URL")
	v.BindEnv("notifier.telegram_token", "CAMPUSDAILY_TELEGRAM_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Routine.Concurrency <= 0 {
		return fmt.Errorf("routine.concurrency must be a positive integer")
	}
	if c.Routine.Minute < 0 || c.Routine.Minute > 59 {
		return fmt.Errorf("routine.minute must be within [0, 59]")
	}
	for _, h := range c.Routine.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("routine.hours entries must be within [0, 23]")
		}
	}
	if c.Network.RatePerSecond <= 0 {
		return fmt.Errorf("network.rate_per_second must be positive")
	}
	if c.History.Enabled && c.History.DatabaseURL == "" {
		return fmt.Errorf("history is enabled but no database URL is set; export CAMPUSDAILY_DATABASE_URL")
	}
	if c.Notifier.Enabled && c.Notifier.TelegramToken == "" {
		return fmt.Errorf("notifier is enabled but no bot token is set; export CAMPUSDAILY_TELEGRAM_TOKEN")
	}
	return nil
}
