package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

var envKeys = []string{
	"SERVICE_NAME", "ENVIRONMENT", "LOG_LEVEL", "LOG_FORMAT", "HTTP_HOST", "HTTP_PORT",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "GEMINI_TIMEOUT", "GOOGLE_GENAI_USE_VERTEXAI",
	"GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_REGION", "GEMINI_TEMPERATURE", "GEMINI_MAX_OUTPUT_TOKENS",
	"GEMINI_SYSTEM_INSTRUCTION", "METRICS_EXPOSE", "METRICS_PORT", "HEALTH_GRPC_PORT",
	"HEALTH_FAILURE_THRESHOLD", "CORS_ALLOWED_ORIGINS", "MAX_REQUEST_SIZE", "REQUEST_TIMEOUT",
	"HIDE_ERROR_DETAILS", "PATH_PREFIX",
}

func float32Ptr(v float32) *float32 { return &v }

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"GEMINI_API_KEY": "test-key"})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-relay", cfg.ServiceName)
	assert.Equal(t, "127.0.0.1:5000", cfg.HTTP.Addr())
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, BackendGeminiAPI, cfg.Gemini.Backend())
	assert.Nil(t, cfg.Gemini.Temperature)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())
	assert.Equal(t, "/health/live", cfg.Health.LivenessPath)
	assert.Equal(t, "/health/ready", cfg.Health.ReadinessPath)
	assert.Equal(t, 0, cfg.Health.GRPCPort)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.CORSAllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxRequestSize)
	assert.False(t, cfg.Security.HideErrorDetails)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"GEMINI_API_KEY":            "k",
		"GEMINI_MODEL":              "gemini-1.5-pro",
		"GEMINI_TIMEOUT":            "5s",
		"GEMINI_TEMPERATURE":        "0.4",
		"GEMINI_MAX_OUTPUT_TOKENS":  "512",
		"GEMINI_SYSTEM_INSTRUCTION": "Be brief.",
		"HTTP_HOST":                 "0.0.0.0",
		"HTTP_PORT":                 "8081",
		"CORS_ALLOWED_ORIGINS":      "https://a.example, https://b.example",
		"HIDE_ERROR_DETAILS":        "true",
		"PATH_PREFIX":               "/api",
		"ENVIRONMENT":               "production",
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	require.NotNil(t, cfg.Gemini.Temperature)
	assert.InDelta(t, 0.4, *cfg.Gemini.Temperature, 1e-6)
	assert.Equal(t, int32(512), cfg.Gemini.MaxOutputTokens)
	assert.Equal(t, "Be brief.", cfg.Gemini.SystemInstruction)
	assert.Equal(t, "0.0.0.0:8081", cfg.HTTP.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
	assert.True(t, cfg.Security.HideErrorDetails)
	assert.Equal(t, "/api", cfg.Security.PathPrefix)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_ExplicitZeroTemperature(t *testing.T) {
	setEnv(t, map[string]string{"GEMINI_API_KEY": "test-key", "GEMINI_TEMPERATURE": "0"})

	cfg, err := Load("")
	require.NoError(t, err)

	require.NotNil(t, cfg.Gemini.Temperature)
	assert.Zero(t, *cfg.Gemini.Temperature)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setEnv(t, nil)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY is required")
}

func TestLoad_VertexWithoutAPIKey(t *testing.T) {
	setEnv(t, map[string]string{
		"GOOGLE_GENAI_USE_VERTEXAI": "true",
		"GOOGLE_CLOUD_PROJECT":      "my-project",
		"GOOGLE_CLOUD_REGION":       "us-central1",
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendVertexAI, cfg.Gemini.Backend())
}

func TestLoad_YAMLFile(t *testing.T) {
	setEnv(t, map[string]string{"GEMINI_API_KEY": "k", "RELAY_MODEL": "gemini-from-env", "HTTP_PORT": "7000"})

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
service_name: relay-from-file
http:
  host: 0.0.0.0
  port: 6000
gemini:
  model: ${RELAY_MODEL}
  timeout: 20s
security:
  path_prefix: /api
  hide_error_details: true
health:
  grpc_port: 6001
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "relay-from-file", cfg.ServiceName)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 7000, cfg.HTTP.Port, "env overrides file")
	assert.Equal(t, "gemini-from-env", cfg.Gemini.Model)
	assert.Equal(t, 20*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "/api", cfg.Security.PathPrefix)
	assert.True(t, cfg.Security.HideErrorDetails)
	assert.Equal(t, 6001, cfg.Health.GRPCPort)
}

func TestLoad_MissingFile(t *testing.T) {
	setEnv(t, map[string]string{"GEMINI_API_KEY": "k"})

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	setEnv(t, map[string]string{"GEMINI_API_KEY": "k"})
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"bad log level", func(c *AppConfig) { c.Logging.LogLevel = "trace" }, "log_level"},
		{"temperature out of range", func(c *AppConfig) { c.Gemini.Temperature = float32Ptr(3) }, "temperature"},
		{"negative tokens", func(c *AppConfig) { c.Gemini.MaxOutputTokens = -1 }, "max_output_tokens"},
		{"vertex without project", func(c *AppConfig) { c.Gemini.UseVertexAI = true }, "GOOGLE_CLOUD_PROJECT"},
		{"gemini timeout above request timeout", func(c *AppConfig) { c.Gemini.Timeout = 2 * time.Minute }, "must not exceed request_timeout"},
		{"same health paths", func(c *AppConfig) { c.Health.ReadinessPath = c.Health.LivenessPath }, "must differ"},
		{"grpc port clash", func(c *AppConfig) { c.Health.GRPCPort = c.HTTP.Port }, "grpc_port must differ"},
		{"metrics port clash", func(c *AppConfig) {
			c.Metrics.ExposeMetrics = true
			c.Metrics.Port = c.HTTP.Port
		}, "metrics port must differ"},
		{"relative prefix", func(c *AppConfig) { c.Security.PathPrefix = "api" }, "path_prefix"},
		{"zero body limit", func(c *AppConfig) { c.Security.MaxRequestSize = 0 }, "max_request_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
