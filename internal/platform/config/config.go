// Package config loads the ambient process configuration (log level/format,
// metrics/health listen address, default timeouts) from environment
// variables, separately from the CLI's required startup flags (app id,
// API base URL, auth, ...) which live in internal/config and are parsed
// with cobra/pflag. Trimmed to the ambient concerns this supervisor
// actually has: no database/cache/message-broker/auth sections, since this
// engine owns no persistence and talks to no broker.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds the ambient process configuration for the supervisor.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Version string        `mapstructure:"version"`
}

// ServiceConfig identifies the running process and its environment:
// APP_ENV toggles IsProduction, DEBUG_MODE toggles debug logging.
type ServiceConfig struct {
	Name        string `mapstructure:"name" envconfig:"SERVICE_NAME" default:"steamrunner"`
	Environment string `mapstructure:"environment" envconfig:"APP_ENV" required:"true"`
	DebugMode   bool   `mapstructure:"debug_mode" envconfig:"DEBUG_MODE" default:"false"`
}

// IsProduction reports whether APP_ENV is "production".
func (c ServiceConfig) IsProduction() bool { return c.Environment == "production" }

// HTTPConfig configures the ambient /healthz and /metrics HTTP surface.
// This is observability-only; the engine has no other inbound HTTP API.
type HTTPConfig struct {
	Port         int           `mapstructure:"port" envconfig:"HTTP_PORT" default:"9090"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
}

// LoggerConfig configures the zap-backed structured logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// Load loads the ambient configuration from an optional config file (if
// present in the working directory) and environment variables, the latter
// always taking precedence.
func Load(serviceName string) (*Config, error) {
	var cfg Config
	cfg.Service.Name = serviceName

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.Service.DebugMode {
		cfg.Logger.Level = "debug"
	}

	if version := os.Getenv("VERSION"); version != "" {
		cfg.Version = version
	} else {
		cfg.Version = "dev"
	}

	return &cfg, nil
}
