package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/gemini_relay/internal/config"
	"github.com/lewisedginton/gemini_relay/internal/generator"
	"github.com/lewisedginton/gemini_relay/internal/server"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
	"github.com/lewisedginton/gemini_relay/pkg/metrics"
)

// shutdownTimeout bounds how long in-flight generations may take to drain.
const shutdownTimeout = 30 * time.Second

// ServerCommand returns a command for server operations
func ServerCommand() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Server operations",
		Subcommands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Start the relay",
				Action: serverStartAction,
			},
		},
	}
}

func serverStartAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := appconfig.Load(ctx.String("config-file"))
	if err != nil {
		log.Error("Failed to load config", logger.ErrorField(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = serviceLogger(cfg)
	cfg.LogConfig(log)

	m := metrics.NewMetrics(metrics.Options{
		HTTP: cfg.Metrics.EnableHTTPMetrics,
		GRPC: cfg.Metrics.EnableGRPCMetrics,
	}, log)

	gen, err := generator.NewGemini(ctx.Context, GeminiConfig(cfg), log, m.Registerer())
	if err != nil {
		log.Error("Failed to create generator", logger.ErrorField(err))
		return fmt.Errorf("failed to create generator: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
			cancel()
		case <-runCtx.Done():
		}
	}()

	return run(runCtx, server.New(cfg, gen, m, log), log)
}

// run serves until ctx is cancelled or a listener fails, then shuts down gracefully.
func run(ctx context.Context, srv *server.Server, log logger.Logger) error {
	errs, err := srv.Listen()
	if err != nil {
		log.Error("Failed to start server", logger.ErrorField(err))
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info("Relay started", logger.StringField("address", srv.Addr().String()))

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errs:
		if ok && err != nil {
			log.Error("Fatal server error occurred", logger.ErrorField(err))
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // fresh context for graceful shutdown
		log.Error("Error during graceful shutdown", logger.ErrorField(err))
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}

	log.Info("Server exited")
	return runErr
}

// GeminiConfig maps application configuration onto the generator's.
func GeminiConfig(cfg *appconfig.AppConfig) generator.GeminiConfig {
	return generator.GeminiConfig{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		BaseURL:           cfg.Gemini.BaseURL,
		UseVertexAI:       cfg.Gemini.UseVertexAI,
		Project:           cfg.Gemini.Project,
		Location:          cfg.Gemini.Region,
		Timeout:           cfg.Gemini.Timeout,
		Temperature:       cfg.Gemini.Temperature,
		MaxOutputTokens:   cfg.Gemini.MaxOutputTokens,
		SystemInstruction: cfg.Gemini.SystemInstruction,
	}
}
