package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"now-playing-go/config"
	"now-playing-go/display"
	"now-playing-go/logcolors"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// watchOptions maps the frontend timing configuration onto controller options.
func watchOptions(cfg config.Config) display.Options {
	return display.Options{
		PollInterval:    ms(cfg.Watch.PollIntervalMs),
		TickInterval:    ms(cfg.Watch.ProgressTickMs),
		EndOfTrackDelay: ms(cfg.Watch.EndOfTrackRepollMs),
		MaxRetries:      cfg.Watch.MaxRetries,
		RetryBackoff:    ms(cfg.Watch.RetryBackoffMs),
	}
}

// runWatch polls the relay and renders the display until the user quits.
func runWatch(ctx context.Context, cfg config.Config) error {
	fetcher := display.NewRelayFetcher(cfg.Watch.RelayURL, &http.Client{
		Timeout: time.Duration(cfg.Configuration.UpstreamTimeoutSeconds) * time.Second,
	})

	model := display.NewModel(ctx, nil)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	opts := watchOptions(cfg)
	opts.OnChange = func(s display.State) {
		program.Send(display.StateMsg(s))
	}
	controller := display.NewController(fetcher, opts)
	model.Attach(controller)
	defer controller.Stop()

	log.Infof("%s Watching %s", logcolors.LogWatch, cfg.Watch.RelayURL)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
