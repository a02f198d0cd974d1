package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func serveHealth(t *testing.T, c *Checker, interval time.Duration) (*GRPCUpdater, grpc_health_v1.HealthClient) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	updater := c.RegisterGRPC(server, "", interval)
	go func() { _ = server.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		updater.Stop()
		server.Stop()
	})
	return updater, grpc_health_v1.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client grpc_health_v1.HealthClient) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestRegisterGRPC_DefaultInterval(t *testing.T) {
	u := New().RegisterGRPC(grpc.NewServer(), "", 0)
	defer u.Stop()
	assert.Equal(t, DefaultGRPCUpdateInterval, u.interval)
}

func TestGRPCUpdater_TracksReadiness(t *testing.T) {
	var failing atomic.Bool
	c := New(WithFailureThreshold(1))
	c.AddReadinessProbe(NewProbeFunc("generator", func(context.Context) error {
		if failing.Load() {
			return errors.New("degraded")
		}
		return nil
	}))

	_, client := serveHealth(t, c, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return checkStatus(t, client) == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 20*time.Millisecond)

	failing.Store(true)
	assert.Eventually(t, func() bool {
		return checkStatus(t, client) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 20*time.Millisecond)
}

func TestGRPCUpdater_Stop(t *testing.T) {
	c := New()
	c.AddReadinessProbe(&stubProbe{name: "generator"})

	updater, client := serveHealth(t, c, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return checkStatus(t, client) == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 20*time.Millisecond)

	updater.Stop()
	updater.Stop()

	assert.Eventually(t, func() bool {
		return checkStatus(t, client) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 20*time.Millisecond)
}
