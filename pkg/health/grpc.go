package health

import (
	"context"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// DefaultGRPCUpdateInterval is how often readiness is pushed to the gRPC health server.
const DefaultGRPCUpdateInterval = 5 * time.Second

// GRPCUpdater keeps a grpc.health.v1 server in sync with the Checker's readiness.
type GRPCUpdater struct {
	checker  *Checker
	server   *grpchealth.Server
	service  string
	interval time.Duration
	stop     chan struct{}
	stopped  atomic.Bool
}

// RegisterGRPC registers the grpc.health.v1.Health service on server and starts
// polling readiness every interval. service is the name reported to clients; ""
// means the whole server. The status starts as NOT_SERVING.
func (c *Checker) RegisterGRPC(server *grpc.Server, service string, interval time.Duration) *GRPCUpdater {
	if interval <= 0 {
		interval = DefaultGRPCUpdateInterval
	}

	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	hs.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	u := &GRPCUpdater{
		checker:  c,
		server:   hs,
		service:  service,
		interval: interval,
		stop:     make(chan struct{}),
	}
	go u.run()

	if c.log != nil {
		c.log.Info("gRPC health service registered",
			logger.StringField("service", service),
			logger.DurationField("update_interval", interval),
		)
	}
	return u
}

func (u *GRPCUpdater) run() {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.update()
	for {
		select {
		case <-ticker.C:
			u.update()
		case <-u.stop:
			u.server.Shutdown()
			return
		}
	}
}

func (u *GRPCUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), u.interval)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if report, err := u.checker.Readiness(ctx); err != nil || !report.Healthy {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	u.server.SetServingStatus(u.service, status)
	if u.checker.log != nil {
		u.checker.log.Debug("gRPC health status updated", logger.StringField("status", status.String()))
	}
}

// Stop marks the service NOT_SERVING and ends polling. Safe to call more than once.
func (u *GRPCUpdater) Stop() {
	if u.stopped.CompareAndSwap(false, true) {
		close(u.stop)
	}
}
