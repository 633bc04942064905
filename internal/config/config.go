// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Generator   GeneratorConfig   `mapstructure:"generator" yaml:"generator"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	Profiles    ProfilesConfig    `mapstructure:"profiles" yaml:"profiles"`
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

// BrowserConfig holds settings for the headless browser and the per-attempt
// page lifecycle.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// NavigationTimeout bounds the initial page load of each attempt.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// MountTimeout bounds the wait for the provider UI framework to finish
	// mounting after navigation.
	MountTimeout time.Duration `mapstructure:"mount_timeout" yaml:"mount_timeout"`
	// PollInterval paces the completion poll loop. Sub-second keeps
	// perceived latency low without hammering the page.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// GracePeriod is the extra re-check window after the busy indicator
	// clears but before extraction is declared to have nothing to extract.
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	// DownloadDir is where download-strategy artifacts land; each session
	// gets its own subdirectory.
	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	// ShutdownGrace bounds the wait for in-flight sessions on shutdown.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// GeneratorConfig tunes the facade.
type GeneratorConfig struct {
	// MaxSessions caps simultaneous browser sessions across all task types.
	MaxSessions int64 `mapstructure:"max_sessions" yaml:"max_sessions"`
	// DefaultTimeout is the per-candidate attempt deadline applied when a
	// request does not carry its own.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// ProviderRate limits attempt starts per provider URL, in attempts per
	// second. Zero disables pacing.
	ProviderRate  float64 `mapstructure:"provider_rate" yaml:"provider_rate"`
	ProviderBurst int     `mapstructure:"provider_burst" yaml:"provider_burst"`
}

// DiagnosticsConfig controls failure screenshots.
type DiagnosticsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HistoryConfig controls the optional attempt journal.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"-"`
}

// ProfilesConfig locates the selector-profile library.
type ProfilesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webgen")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.navigation_timeout", 45*time.Second)
	v.SetDefault("browser.mount_timeout", 30*time.Second)
	v.SetDefault("browser.poll_interval", 500*time.Millisecond)
	v.SetDefault("browser.grace_period", 3*time.Second)
	v.SetDefault("browser.download_dir", "")
	v.SetDefault("browser.shutdown_grace", 15*time.Second)

	// -- Generator --
	v.SetDefault("generator.max_sessions", 3)
	v.SetDefault("generator.default_timeout", 5*time.Minute)
	v.SetDefault("generator.provider_rate", 0.0)
	v.SetDefault("generator.provider_burst", 1)

	// -- Diagnostics / History / Profiles --
	v.SetDefault("diagnostics.dir", "diagnostics")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("profiles.path", "profiles.yaml")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("history.dsn", "WEBGEN_HISTORY_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults must always unmarshal.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Generator.MaxSessions < 1 {
		return fmt.Errorf("generator.max_sessions must be at least 1, got %d", c.Generator.MaxSessions)
	}
	if c.Browser.PollInterval <= 0 {
		return fmt.Errorf("browser.poll_interval must be positive, got %v", c.Browser.PollInterval)
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.MountTimeout <= 0 {
		return fmt.Errorf("browser navigation and mount timeouts must be positive")
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.enabled requires history.dsn (or WEBGEN_HISTORY_DSN)")
	}
	return nil
}
