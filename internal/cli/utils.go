package cli

import (
	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/gemini_relay/internal/config"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// MetadataLoggerKey is the App.Metadata key holding the bootstrap logger.
const MetadataLoggerKey = "logger"

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata[MetadataLoggerKey].(logger.Logger); ok {
			return log
		}
	}

	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "json",
		Service: "gemini-relay",
	})
}

// serviceLogger builds the long-lived logger from loaded configuration.
func serviceLogger(cfg *appconfig.AppConfig) logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.LogFormat,
		Service: cfg.ServiceName,
	})
}
