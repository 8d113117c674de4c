package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	ucli "github.com/urfave/cli/v2"

	"github.com/maax3v3/yarnmap/internal/cli"
	"github.com/maax3v3/yarnmap/internal/imaging"
	"github.com/maax3v3/yarnmap/internal/logging"
	"github.com/maax3v3/yarnmap/internal/palette"
	"github.com/maax3v3/yarnmap/internal/pipeline"
	"github.com/maax3v3/yarnmap/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.Nop()
	app := &ucli.App{
		Name:  "yarnmap",
		Usage: "split a picture into color regions and match them against a yarn palette",
		Flags: cli.GlobalFlags(),
		Before: func(c *ucli.Context) error {
			lc := cli.LoggingFromContext(c)
			l, err := logging.New(os.Stderr, lc.Format, lc.Level)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
		Commands: []*ucli.Command{
			{
				Name:  "analyze",
				Usage: "analyze an image file and write a JSON report",
				Flags: cli.AnalyzeFlags(),
				Action: func(c *ucli.Context) error {
					cfg, err := cli.ConfigFromContext(c)
					if err != nil {
						return err
					}
					return pipeline.Run(c.Context, cfg, os.Stdout, log)
				},
			},
			{
				Name:  "serve",
				Usage: "serve the analysis HTTP API",
				Flags: cli.ServeFlags(),
				Action: func(c *ucli.Context) error {
					cfg, err := cli.ServerConfigFromContext(c)
					if err != nil {
						return err
					}
					var pal *palette.Palette
					if cfg.PalettePath != "" {
						if pal, err = palette.Load(imaging.ExpandPath(cfg.PalettePath)); err != nil {
							return fmt.Errorf("loading palette: %w", err)
						}
					}
					return server.New(cfg, pal, log).ListenAndServe(c.Context)
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
