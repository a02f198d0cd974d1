// Package metrics provides Prometheus metrics collection for HTTP and gRPC requests.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// Subsystem prefixes every metric registered by this package.
const Subsystem = "gemini_relay"

var durationBuckets = []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0, 30.0, 60.0}

// Options selects which built-in collectors are registered.
type Options struct {
	HTTP bool
	GRPC bool
}

// Metrics owns a private Prometheus registry and the built-in request collectors.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram
	httpResponses            map[int]prometheus.Counter

	TotalGrpcRequestsCounter prometheus.Counter
	GrpcDurationHistogram    prometheus.Histogram
	grpcResponses            map[codes.Code]prometheus.Counter

	mu     sync.Mutex
	server *http.Server
	log    logger.Logger
}

// NewMetrics creates a Metrics instance with the requested collectors registered.
func NewMetrics(opts Options, l logger.Logger) *Metrics {
	m := &Metrics{
		reg:           prometheus.NewRegistry(),
		httpResponses: make(map[int]prometheus.Counter),
		grpcResponses: make(map[codes.Code]prometheus.Counter),
		log:           l,
	}
	if opts.HTTP {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: Subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter, m.HTTPDurationHistogram)
	}
	if opts.GRPC {
		m.TotalGrpcRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: Subsystem,
			Name:      "total_grpc_requests",
			Help:      "Total gRPC requests",
		})
		m.GrpcDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: Subsystem,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalGrpcRequestsCounter, m.GrpcDurationHistogram)
	}
	return m
}

// Registerer exposes the registry so other packages can register their own collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.reg
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen serves /metrics on addr in the background. The returned channel receives
// the listener's terminal error and is closed afterwards. A clean Shutdown yields no error.
func (m *Metrics) Listen(addr string) (net.Addr, chan error, error) {
	lis, err := net.Listen("tcp", addr) //nolint:noctx // lifecycle owned by Shutdown
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	m.log.Info("Starting metrics listener", logger.StringField("address", lis.Addr().String()))

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics listener: %w", err)
		}
	}()
	return lis.Addr(), errs, nil
}

// Shutdown stops the metrics listener, if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	m.mu.Unlock()
	if server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	return server.Shutdown(ctx)
}

// GrpcRequestsInterceptor implements the gRPC unary interceptor interface.
// Note: interface{} usage required by gRPC library signature
func (m *Metrics) GrpcRequestsInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp interface{}, err error) {
	if m.TotalGrpcRequestsCounter == nil {
		return handler(ctx, req)
	}

	start := time.Now()
	m.TotalGrpcRequestsCounter.Inc()
	resp, err = handler(ctx, req)

	m.GrpcDurationHistogram.Observe(time.Since(start).Seconds())
	m.IncrementGrpcResponseCounter(status.Code(err))
	return resp, err
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code,
// registering it on first use.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.mu.Lock()
	c, ok := m.httpResponses[code]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: Subsystem,
			Name:      "total_" + strconv.Itoa(code) + "_http_responses",
			Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
		})
		m.reg.MustRegister(c)
		m.httpResponses[code] = c
	}
	m.mu.Unlock()
	c.Inc()
}

// IncrementGrpcResponseCounter increments the counter for the given gRPC status code,
// registering it on first use.
func (m *Metrics) IncrementGrpcResponseCounter(code codes.Code) {
	m.mu.Lock()
	c, ok := m.grpcResponses[code]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: Subsystem,
			Name:      fmt.Sprintf("total_%d_grpc_responses", code),
			Help:      fmt.Sprintf("Total %s gRPC responses returned", code.String()),
		})
		m.reg.MustRegister(c)
		m.grpcResponses[code] = c
	}
	m.mu.Unlock()
	c.Inc()
}

// HTTPMiddleware returns a chi-compatible middleware that records request count,
// duration and per-status response counts. It is a no-op when HTTP metrics are disabled.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.TotalHTTPRequestsCounter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
