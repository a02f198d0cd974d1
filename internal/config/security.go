package config

import (
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000"`
	MaxRequestSize     int64         `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MiB
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"75s"`
	// HideErrorDetails replaces provider error text in 500 responses with a generic message.
	HideErrorDetails bool   `env:"HIDE_ERROR_DETAILS" yaml:"hide_error_details"`
	PathPrefix       string `env:"PATH_PREFIX" yaml:"path_prefix"`
}

// Validate implements pkgconfig.Validator.
func (s *SecurityConfig) Validate() error {
	var result error
	if s.MaxRequestSize <= 0 {
		result = multierror.Append(result, errors.New("max_request_size must be greater than 0"))
	}
	if s.RequestTimeout < 0 {
		result = multierror.Append(result, errors.New("request_timeout must not be negative"))
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		result = multierror.Append(result, errors.New("path_prefix must start with '/'"))
	}
	return result
}
