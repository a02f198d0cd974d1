package config

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Gemini backends.
const (
	BackendGeminiAPI = "gemini-api"
	BackendVertexAI  = "vertex-ai"
)

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY" yaml:"-"`
	Model   string        `env:"GEMINI_MODEL" yaml:"model" default:"gemini-2.0-flash"`
	BaseURL string        `env:"GEMINI_BASE_URL" yaml:"base_url"`
	Timeout time.Duration `env:"GEMINI_TIMEOUT" yaml:"timeout" default:"60s"`

	// Vertex AI; when enabled the API key is optional and application default credentials are used.
	UseVertexAI bool   `env:"GOOGLE_GENAI_USE_VERTEXAI" yaml:"use_vertex_ai"`
	Project     string `env:"GOOGLE_CLOUD_PROJECT" yaml:"project"`
	Region      string `env:"GOOGLE_CLOUD_REGION" yaml:"region"`

	// Optional generation settings. Unset temperature (nil) and zero tokens mean provider default;
	// an explicit temperature of 0 is sent as 0.
	Temperature       *float32 `env:"GEMINI_TEMPERATURE" yaml:"temperature"`
	MaxOutputTokens   int32    `env:"GEMINI_MAX_OUTPUT_TOKENS" yaml:"max_output_tokens"`
	SystemInstruction string   `env:"GEMINI_SYSTEM_INSTRUCTION" yaml:"system_instruction"`
}

// Backend names the configured backend.
func (g *GeminiConfig) Backend() string {
	if g.UseVertexAI {
		return BackendVertexAI
	}
	return BackendGeminiAPI
}

// Validate implements pkgconfig.Validator.
func (g *GeminiConfig) Validate() error {
	var result error

	if g.UseVertexAI {
		if g.Project == "" || g.Region == "" {
			result = multierror.Append(result, errors.New("GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_REGION are required for Vertex AI"))
		}
	} else if g.APIKey == "" {
		result = multierror.Append(result, errors.New("GEMINI_API_KEY is required"))
	}

	if g.Model == "" {
		result = multierror.Append(result, errors.New("model must not be empty"))
	}
	if g.Timeout <= 0 {
		result = multierror.Append(result, errors.New("timeout must be greater than 0"))
	}
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		result = multierror.Append(result, errors.New("temperature must be between 0 and 2"))
	}
	if g.MaxOutputTokens < 0 {
		result = multierror.Append(result, errors.New("max_output_tokens must not be negative"))
	}

	return result
}
