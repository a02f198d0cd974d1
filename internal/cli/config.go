package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/gemini_relay/internal/config"
	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Load and validate configuration without starting the server",
				Action: configValidateAction,
			},
		},
	}
}

func configValidateAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	path := ctx.String("config-file")

	log.Info("Validating configuration", logger.StringField("config_file", path))

	cfg, err := appconfig.Load(path)
	if err != nil {
		log.Error("Configuration validation failed", logger.ErrorField(err))
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.LogConfig(log)
	_, _ = fmt.Fprintln(ctx.App.Writer, "Configuration is valid")
	return nil
}
