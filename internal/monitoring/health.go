// Package monitoring assembles the relay's liveness and readiness probes.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/lewisedginton/gemini_relay/pkg/health"
	"github.com/lewisedginton/gemini_relay/pkg/health/checkers"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
	"github.com/lewisedginton/gemini_relay/pkg/metrics"
)

// ErrShuttingDown is reported by readiness once shutdown has begun.
var ErrShuttingDown = errors.New("server is shutting down")

// Config holds configuration for the health monitor
type Config struct {
	Logger logger.Logger
	// GeneratorReady reports whether the generator can take requests; nil means always ready.
	GeneratorReady func(ctx context.Context) error
	// ProviderCheckURL is probed for reachability when set.
	ProviderCheckURL string
	Timeout          time.Duration
	FailureThreshold int
	// Registerer receives the per-probe gauge when set.
	Registerer prometheus.Registerer
}

// HealthMonitor owns the process's probes and serves them over HTTP and gRPC.
type HealthMonitor struct {
	checker      *health.Checker
	log          logger.Logger
	shuttingDown atomic.Bool
	grpcUpdater  *health.GRPCUpdater
}

// NewHealthMonitor creates a new health monitor with configured probes
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	opts := []health.Option{
		health.WithLogger(cfg.Logger),
		health.WithTimeout(cfg.Timeout),
		health.WithFailureThreshold(cfg.FailureThreshold),
	}
	if cfg.Registerer != nil {
		gauge := health.NewProbeGauge(metrics.Subsystem)
		cfg.Registerer.MustRegister(gauge)
		opts = append(opts, health.WithGauge(gauge))
	}

	hm := &HealthMonitor{
		checker: health.New(opts...),
		log:     cfg.Logger,
	}

	hm.checker.AddLivenessProbe(health.NewProbeFunc("process", func(context.Context) error {
		return nil
	}))

	ready := cfg.GeneratorReady
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	hm.checker.AddReadinessProbe(health.NewProbeFunc("generator", ready))

	if cfg.ProviderCheckURL != "" {
		hm.checker.AddReadinessProbe(checkers.NewHTTPChecker(cfg.ProviderCheckURL, "gemini_api"))
	}

	return hm
}

// RegisterRoutes mounts the liveness and readiness handlers on r.
func (hm *HealthMonitor) RegisterRoutes(r chi.Router, livenessPath, readinessPath string) {
	r.Get(livenessPath, hm.LivenessHandler())
	r.Get(readinessPath, hm.ReadinessHandler())
}

// LivenessHandler serves the liveness report.
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return hm.checker.LivenessHandler()
}

// ReadinessHandler serves the readiness report, or 503 without running probes
// once shutdown has begun.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	probes := hm.checker.ReadinessHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		if !hm.shuttingDown.Load() {
			probes(w, r)
			return
		}
		body, _ := json.Marshal(health.Response{Status: "unhealthy", Message: ErrShuttingDown.Error()})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write(body)
	}
}

// Readiness runs the readiness probes directly.
func (hm *HealthMonitor) Readiness(ctx context.Context) (*health.Report, error) {
	if hm.shuttingDown.Load() {
		return &health.Report{}, ErrShuttingDown
	}
	return hm.checker.Readiness(ctx)
}

// RegisterGRPC exposes readiness through grpc.health.v1 on server.
func (hm *HealthMonitor) RegisterGRPC(server *grpc.Server, interval time.Duration) {
	hm.grpcUpdater = hm.checker.RegisterGRPC(server, "", interval)
}

// BeginShutdown fails readiness from now on and marks the gRPC health service NOT_SERVING.
func (hm *HealthMonitor) BeginShutdown() {
	if hm.shuttingDown.CompareAndSwap(false, true) {
		hm.log.Info("Marking service as not ready")
	}
	if hm.grpcUpdater != nil {
		hm.grpcUpdater.Stop()
	}
}
