// Package config defines the relay's application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/gemini_relay/pkg/config"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"gemini-relay"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	Logging  pkgconfig.CommonConfig     `yaml:"logging"`
	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Gemini   GeminiConfig               `yaml:"gemini"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
	Health   HealthConfig               `yaml:"health"`
	Security SecurityConfig             `yaml:"security"`
}

// Load reads configuration from an optional YAML file overlaid with environment variables.
// An empty path means environment only. A named file that cannot be read is an error.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	validators := []struct {
		name string
		v    pkgconfig.Validator
	}{
		{"logging", &c.Logging},
		{"http", &c.HTTP},
		{"gemini", &c.Gemini},
		{"metrics", &c.Metrics},
		{"health", &c.Health},
		{"security", &c.Security},
	}
	for _, section := range validators {
		if err := section.v.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", section.name, err))
		}
	}

	if c.Security.RequestTimeout > 0 && c.Gemini.Timeout > c.Security.RequestTimeout {
		result = multierror.Append(result, fmt.Errorf("gemini timeout (%s) must not exceed request_timeout (%s)",
			c.Gemini.Timeout, c.Security.RequestTimeout))
	}
	if c.Metrics.ExposeMetrics && c.Metrics.Port == c.HTTP.Port {
		result = multierror.Append(result, fmt.Errorf("metrics port must differ from http port (%d)", c.HTTP.Port))
	}
	if c.Health.GRPCPort != 0 && c.Health.GRPCPort == c.HTTP.Port {
		result = multierror.Append(result, fmt.Errorf("health grpc_port must differ from http port (%d)", c.HTTP.Port))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.LogLevel)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("address", c.HTTP.Addr()),
		logger.ModelField(c.Gemini.Model),
		logger.StringField("gemini_backend", c.Gemini.Backend()),
		logger.BoolField("gemini_api_key_set", c.Gemini.APIKey != ""),
		logger.DurationField("gemini_timeout", c.Gemini.Timeout),
		logger.StringField("log_level", c.Logging.LogLevel),
		logger.StringField("log_format", c.Logging.LogFormat),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.IntField("health_grpc_port", c.Health.GRPCPort),
		logger.StringField("path_prefix", c.Security.PathPrefix),
		logger.BoolField("hide_error_details", c.Security.HideErrorDetails),
	)
}
