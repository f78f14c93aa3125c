package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"now-playing-go/config"
	"now-playing-go/logcolors"
	"now-playing-go/services/spotify"

	log "github.com/sirupsen/logrus"
)

const defaultCallbackPath = "/callback"

// runSetup serves the one-time authorization flow on the redirect URI's
// host and prints the refresh token it produces.
func runSetup(ctx context.Context, cfg config.Config, out io.Writer) error {
	if err := cfg.ValidateSetup(); err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return &config.ConfigError{Err: fmt.Errorf("invalid SPOTIFY_REDIRECT_URI %q", cfg.Spotify.RedirectURI)}
	}
	callbackPath := redirect.Path
	if callbackPath == "" || callbackPath == "/" {
		callbackPath = defaultCallbackPath
	}

	flow, err := spotify.NewSetupFlow(spotify.NewAuthenticator(cfg.Spotify))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{
		Handler:           flow.Handler(callbackPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("%s Server error: %v", logcolors.LogSetup, err)
		}
	}()

	log.Infof("%s Make sure %s is registered as a redirect URI for your Spotify app", logcolors.LogSetup, cfg.Spotify.RedirectURI)
	fmt.Fprintf(out, "Open http://%s/login in your browser to authorize access.\n", redirect.Host)

	token, waitErr := flow.Wait(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if waitErr != nil {
		return fmt.Errorf("authorization failed: %w", waitErr)
	}

	fmt.Fprintln(out, "\nSuccess! Add this line to your .env.local file:")
	fmt.Fprintf(out, "\nSPOTIFY_REFRESH_TOKEN=%s\n\n", token.RefreshToken)
	return nil
}
