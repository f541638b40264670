// Package config provides configuration management for stasis using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the STASIS_ prefix, and validation. It covers the dev server, the build
// driver, and the polling watcher.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
	"github.com/conneroisu/stasis/internal/validation"
)

const (
	DefaultHost         = "localhost"
	DefaultPort         = 8080
	DefaultReloadAnchor = "<head>"
	DefaultSource       = "site"
	DefaultOutput       = "public"
	DefaultInterval     = 300 * time.Millisecond
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Open         bool   `mapstructure:"open" yaml:"open"`
	LiveReload   bool   `mapstructure:"live_reload" yaml:"live_reload"`
	ReloadAnchor string `mapstructure:"reload_anchor" yaml:"reload_anchor"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type BuildConfig struct {
	Source  string `mapstructure:"source" yaml:"source"`
	Output  string `mapstructure:"output" yaml:"output"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
	Drafts  bool   `mapstructure:"drafts" yaml:"drafts"`
	// FIFO serves overflowed build tasks oldest first instead of newest first.
	FIFO bool `mapstructure:"fifo" yaml:"fifo"`
}

type WatchConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	DisableDelete bool          `mapstructure:"disable_delete" yaml:"disable_delete"`
	Ignore        []string      `mapstructure:"ignore" yaml:"ignore"`
}

// SetDefaults registers default values on v so that unset keys still
// unmarshal to something usable.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.open", false)
	v.SetDefault("server.live_reload", true)
	v.SetDefault("server.reload_anchor", DefaultReloadAnchor)

	v.SetDefault("build.source", DefaultSource)
	v.SetDefault("build.output", DefaultOutput)
	v.SetDefault("build.workers", runtime.NumCPU())
	v.SetDefault("build.drafts", false)
	v.SetDefault("build.fifo", false)

	v.SetDefault("watch.interval", DefaultInterval)
	v.SetDefault("watch.disable_delete", false)
	v.SetDefault("watch.ignore", []string{"node_modules", ".git"})
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.ReloadAnchor == "" {
		config.Server.ReloadAnchor = DefaultReloadAnchor
	}
	if config.Build.Workers < 1 {
		config.Build.Workers = 1
	}
	if config.Watch.Interval <= 0 {
		config.Watch.Interval = DefaultInterval
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return stasiserrors.Wrap(err, stasiserrors.ErrorTypeConfig, stasiserrors.ErrCodeConfigInvalid, "server config")
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return stasiserrors.Wrap(err, stasiserrors.ErrorTypeConfig, stasiserrors.ErrCodeConfigInvalid, "build config")
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 asks the OS for a free port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if err := validation.ValidateHost(config.Host); err != nil {
		return err
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if err := validation.ValidatePath(config.Source); err != nil {
		return fmt.Errorf("invalid source '%s': %w", config.Source, err)
	}
	if err := validation.ValidatePath(config.Output); err != nil {
		return fmt.Errorf("invalid output '%s': %w", config.Output, err)
	}

	src, _ := filepath.Abs(config.Source)
	out, _ := filepath.Abs(config.Output)
	if src == out {
		return fmt.Errorf("output must differ from source: %s", config.Output)
	}
	if rel, err := filepath.Rel(src, out); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("output %s must not live inside source %s", config.Output, config.Source)
	}

	return nil
}
