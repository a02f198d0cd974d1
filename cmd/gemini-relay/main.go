package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	commands "github.com/lewisedginton/gemini_relay/internal/cli"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "gemini-relay",
		Usage:   "Relay text prompts to Gemini over HTTP",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Value:   "",
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			format := os.Getenv("LOG_FORMAT")
			if format == "" {
				format = "json"
			}
			log := logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  format,
				Service: "gemini-relay",
			})

			ctx.App.Metadata = map[string]interface{}{
				commands.MetadataLoggerKey: log,
			}

			return nil
		},
		Commands: []*cli.Command{
			commands.ConfigCommand(),
			commands.ServerCommand(),
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
