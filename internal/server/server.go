// Package server wires the relay's HTTP, metrics and gRPC health listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"

	appconfig "github.com/lewisedginton/gemini_relay/internal/config"
	"github.com/lewisedginton/gemini_relay/internal/generator"
	"github.com/lewisedginton/gemini_relay/internal/handler"
	"github.com/lewisedginton/gemini_relay/internal/monitoring"
	"github.com/lewisedginton/gemini_relay/pkg/httpmiddleware"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
	"github.com/lewisedginton/gemini_relay/pkg/metrics"
	"github.com/lewisedginton/gemini_relay/pkg/utils"
)

// GeneratePath is the relay's single business route.
const GeneratePath = "/generate"

// Server encapsulates the relay's listeners and their lifecycle
type Server struct {
	cfg     *appconfig.AppConfig
	log     logger.Logger
	metrics *metrics.Metrics
	monitor *monitoring.HealthMonitor
	router  chi.Router

	mu         sync.Mutex
	httpServer *http.Server
	httpAddr   net.Addr
	grpcAddr   net.Addr
	stopGRPC   func()
}

// New builds the router around gen. m may be nil, in which case a private
// metrics instance with every collector disabled is used.
func New(cfg *appconfig.AppConfig, gen generator.Generator, m *metrics.Metrics, log logger.Logger) *Server {
	if m == nil {
		m = metrics.NewMetrics(metrics.Options{}, log)
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
	s.monitor = monitoring.NewHealthMonitor(monitoring.Config{
		Logger: log,
		GeneratorReady: func(context.Context) error {
			if gen == nil {
				return errors.New("generator not configured")
			}
			return nil
		},
		ProviderCheckURL: cfg.Health.ProviderCheckURL,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
		Registerer:       m.Registerer(),
	})
	s.router = s.createRouter(gen)

	return s
}

// createRouter sets up all routes and middleware
func (s *Server) createRouter(gen generator.Generator) chi.Router {
	r := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	mw.CORS.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	mw.Timeout = s.cfg.Security.RequestTimeout
	mw.StripPrefix = s.cfg.Security.PathPrefix
	mw.EnableStripPrefix = s.cfg.Security.PathPrefix != ""
	httpmiddleware.ApplyToRouter(r, mw)
	r.Use(s.metrics.HTTPMiddleware())

	s.monitor.RegisterRoutes(r, s.cfg.Health.LivenessPath, s.cfg.Health.ReadinessPath)

	r.Method(http.MethodPost, GeneratePath, handler.NewGenerateHandler(gen, s.log, handler.Options{
		MaxRequestSize:   s.cfg.Security.MaxRequestSize,
		HideErrorDetails: s.cfg.Security.HideErrorDetails,
	}))

	return r
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds every configured listener and serves in the background.
// The returned channel carries fatal listener errors and closes once all
// listeners have stopped.
func (s *Server) Listen() (chan error, error) {
	httpErrs, err := s.listenHTTP()
	if err != nil {
		return nil, err
	}
	channels := []chan error{httpErrs}

	if s.cfg.Metrics.ExposeMetrics {
		addr := s.cfg.Metrics.Addr(s.cfg.HTTP.Host)
		_, metricsErrs, err := s.metrics.Listen(addr)
		if err != nil {
			s.abort()
			return nil, err
		}
		channels = append(channels, metricsErrs)
	}

	if s.cfg.Health.GRPCPort != 0 {
		grpcErrs, err := s.listenGRPC()
		if err != nil {
			s.abort()
			return nil, err
		}
		channels = append(channels, grpcErrs)
	}

	return utils.MergeErrorChans(channels...), nil
}

func (s *Server) listenHTTP() (chan error, error) {
	addr := s.cfg.HTTP.Addr()
	lis, err := net.Listen("tcp", addr) //nolint:noctx // lifecycle owned by Shutdown
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:        s.router,
		ReadTimeout:    s.cfg.HTTP.ReadTimeout(),
		WriteTimeout:   s.cfg.HTTP.WriteTimeout(),
		IdleTimeout:    s.cfg.HTTP.IdleTimeout(),
		MaxHeaderBytes: s.cfg.HTTP.MaxHeaderBytes,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.httpAddr = lis.Addr()
	s.mu.Unlock()

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		s.log.Info("Starting HTTP server", logger.StringField("address", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	return errs, nil
}

func (s *Server) listenGRPC() (chan error, error) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.log.GrpcRequestsInterceptor,
		s.metrics.GrpcRequestsInterceptor,
	))
	s.monitor.RegisterGRPC(srv, s.cfg.Health.GRPCUpdateInterval)

	addr := net.JoinHostPort(s.cfg.HTTP.Host, strconv.Itoa(s.cfg.Health.GRPCPort))
	bound, serveErrs, stop, err := utils.ServeGRPC(srv, addr, s.log)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.grpcAddr = bound
	s.stopGRPC = stop
	s.mu.Unlock()

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		for err := range serveErrs {
			if err != nil {
				errs <- fmt.Errorf("grpc health server: %w", err)
			}
		}
	}()
	return errs, nil
}

// Addr is the bound HTTP address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr is the bound gRPC health address, or nil when disabled.
func (s *Server) GRPCAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

// Shutdown fails readiness, drains in-flight requests and stops every listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.monitor.BeginShutdown()

	s.mu.Lock()
	httpServer, stopGRPC := s.httpServer, s.stopGRPC
	s.mu.Unlock()

	var result error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if stopGRPC != nil {
		stopGRPC()
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("metrics shutdown: %w", err))
	}
	return result
}

// abort tears down listeners that did start when a later one fails.
func (s *Server) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.log.Warn("Error while aborting startup", logger.ErrorField(err))
	}
}
