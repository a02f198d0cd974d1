package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// MetricsConfig holds metrics collection and exposure settings
type MetricsConfig struct {
	// EnableHTTPMetrics enables HTTP request counter and duration metrics
	EnableHTTPMetrics bool `env:"METRICS_ENABLE_HTTP" yaml:"enable_http_metrics" default:"false"`

	// EnableGRPCMetrics enables gRPC request metrics for the health service
	EnableGRPCMetrics bool `env:"METRICS_ENABLE_GRPC" yaml:"enable_grpc_metrics" default:"false"`

	// Port is the HTTP port for the Prometheus /metrics endpoint
	Port int `env:"METRICS_PORT" yaml:"port" default:"9090"`

	// ExposeMetrics determines whether to start the metrics HTTP server
	ExposeMetrics bool `env:"METRICS_EXPOSE" yaml:"expose_metrics" default:"false"`
}

// Validate checks MetricsConfig for valid port range when metrics are exposed
func (m MetricsConfig) Validate() error {
	var result error
	if m.ExposeMetrics && (m.Port < 1 || m.Port > 65535) {
		result = multierror.Append(result, fmt.Errorf("metrics port must be between 1-65535, got %d", m.Port))
	}
	return result
}

// Addr returns the metrics listen address on host. The metrics server shares
// the HTTP server's interface so a loopback relay never exposes it publicly.
func (m MetricsConfig) Addr(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(m.Port))
}
