package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"now-playing-go/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "now-playing-go",
		Usage: "Show what is playing on Spotify right now",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the now-playing relay",
				Action: serveAction,
			},
			{
				Name:  "watch",
				Usage: "Display the current track from a running relay",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "relay-url",
						Usage: "Relay base URL (overrides RELAY_URL)",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Write logs to this file instead of discarding them",
					},
				},
				Action: watchAction,
			},
			{
				Name:   "setup",
				Usage:  "Authorize with Spotify once and print a refresh token",
				Action: setupAction,
			},
		},
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return serve(ctx, cfg)
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	// The display owns the terminal; logs go to a file or nowhere.
	log.SetOutput(io.Discard)
	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if url := cmd.String("relay-url"); url != "" {
		cfg.Watch.RelayURL = url
	}
	return runWatch(ctx, cfg)
}

func setupAction(ctx context.Context, cmd *cli.Command) error {
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return runSetup(ctx, cfg, os.Stdout)
}
