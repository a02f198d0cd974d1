package config

import (
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HealthConfig holds health check configuration
type HealthConfig struct {
	LivenessPath       string        `env:"HEALTH_LIVENESS_PATH" yaml:"liveness_path" default:"/health/live"`
	ReadinessPath      string        `env:"HEALTH_READINESS_PATH" yaml:"readiness_path" default:"/health/ready"`
	Timeout            time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold   int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
	GRPCPort           int           `env:"HEALTH_GRPC_PORT" yaml:"grpc_port"` // 0 disables the gRPC health server
	GRPCUpdateInterval time.Duration `env:"HEALTH_GRPC_UPDATE_INTERVAL" yaml:"grpc_update_interval" default:"5s"`
	// ProviderCheckURL, when set, is probed for reachability as part of readiness.
	ProviderCheckURL string `env:"HEALTH_PROVIDER_CHECK_URL" yaml:"provider_check_url"`
}

// Validate implements pkgconfig.Validator.
func (h *HealthConfig) Validate() error {
	var result error
	if !strings.HasPrefix(h.LivenessPath, "/") || !strings.HasPrefix(h.ReadinessPath, "/") {
		result = multierror.Append(result, errors.New("health paths must start with '/'"))
	}
	if h.LivenessPath == h.ReadinessPath {
		result = multierror.Append(result, errors.New("liveness and readiness paths must differ"))
	}
	if h.Timeout <= 0 {
		result = multierror.Append(result, errors.New("timeout must be greater than 0"))
	}
	if h.FailureThreshold < 1 {
		result = multierror.Append(result, errors.New("failure_threshold must be at least 1"))
	}
	if h.GRPCPort < 0 || h.GRPCPort > 65535 {
		result = multierror.Append(result, errors.New("grpc_port must be between 0 and 65535"))
	}
	return result
}
