package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "usbdeck",
		Usage:   "Organize playlists into folders and copy them to a USB stick",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("USBDECK_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			addCommand(),
			listCommand(),
			infoCommand(),
			destCommand(),
			copyCommand(),
			devicesCommand(),
			historyCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("usbdeck failed", "error", err)
		os.Exit(1)
	}
}
