package main

import (
	"context"
	"os"

	"github.com/desertthunder/composers/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "composers",
		Usage:   "Composer timeline audio proxy and player",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file overlaid on the configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "proxy",
				Usage: "Proxy base URL for client commands (overrides player.proxy_url)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
