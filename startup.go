package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"now-playing-go/circuitbreaker"
	"now-playing-go/config"
	"now-playing-go/logcolors"
	"now-playing-go/middleware"
	"now-playing-go/services/notifier"
	"now-playing-go/services/spotify"
	"now-playing-go/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	conf         config.Config
	nowPlaying   nowPlayingSource
	tokenBreaker *circuitbreaker.CircuitBreaker
	tokenStatus  tokenStatusSource
	alerts       *notifier.AlertHandler
)

const alertTimeout = 15 * time.Second

func setupNotifiers(cfg config.Config) []notifier.Notifier {
	n := cfg.Notifier
	var notifiers []notifier.Notifier

	if n.SMTPHost != "" {
		notifiers = append(notifiers, &notifier.EmailNotifier{
			SMTPHost:     n.SMTPHost,
			SMTPPort:     n.SMTPPort,
			SMTPUsername: n.SMTPUsername,
			SMTPPassword: n.SMTPPassword,
			FromEmail:    n.FromEmail,
			ToEmail:      n.ToEmail,
		})
	}

	if n.TelegramBotToken != "" {
		notifiers = append(notifiers, &notifier.TelegramNotifier{
			BotToken: n.TelegramBotToken,
			ChatID:   n.TelegramChatID,
		})
	}

	if n.NtfyTopic != "" {
		notifiers = append(notifiers, &notifier.NtfyNotifier{
			Topic:  n.NtfyTopic,
			Server: n.NtfyServer,
		})
	}

	for _, nt := range notifiers {
		log.Infof("%s %s notifier enabled", logcolors.LogNotifier, nt.Name())
	}
	return notifiers
}

// breakerAlert turns a token breaker transition into an operator alert.
// Only tripping and closing again are worth a message.
func breakerAlert(t circuitbreaker.Transition) (notifier.Event, bool) {
	switch {
	case t.To == circuitbreaker.StateOpen && t.From == circuitbreaker.StateClosed:
		return notifier.Event{
			Type:     notifier.EventCircuitBreakerOpen,
			Severity: notifier.SeverityCritical,
			Name:     t.Name,
			Failures: t.Failures,
			Cooldown: t.Cooldown,
		}, true
	case t.To == circuitbreaker.StateClosed && t.From != circuitbreaker.StateClosed:
		return notifier.Event{
			Type:     notifier.EventCircuitBreakerRecovered,
			Severity: notifier.SeverityInfo,
			Name:     t.Name,
		}, true
	}
	return notifier.Event{}, false
}

// breakerAlerter returns an OnStateChange hook bound to handler.
func breakerAlerter(handler *notifier.AlertHandler) func(circuitbreaker.Transition) {
	return func(t circuitbreaker.Transition) {
		event, ok := breakerAlert(t)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		handler.Handle(ctx, event)
	}
}

// setupServices wires the token provider, breaker and relay from config.
func setupServices(cfg config.Config) {
	conf = cfg

	alerts = notifier.NewAlertHandler(notifier.AlertConfig{
		Notifiers:        setupNotifiers(cfg),
		CooldownDuration: time.Duration(cfg.Notifier.AlertCooldownMinutes) * time.Minute,
	})

	httpClient := &http.Client{Timeout: time.Duration(cfg.Configuration.UpstreamTimeoutSeconds) * time.Second}

	tokenBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name:          "token",
		Threshold:     cfg.Configuration.CircuitBreakerThreshold,
		Cooldown:      time.Duration(cfg.Configuration.CircuitBreakerCooldownSecs) * time.Second,
		OnStateChange: breakerAlerter(alerts),
	})

	provider := spotify.NewTokenProvider(cfg.Spotify, spotify.TokenProviderOptions{
		HTTPClient:  httpClient,
		Breaker:     tokenBreaker,
		CacheTokens: cfg.FeatureFlags.TokenCache,
	})
	tokenStatus = nil
	if cfg.FeatureFlags.TokenCache {
		tokenStatus = provider
		log.Infof("%s Access token caching enabled", logcolors.LogTokenCache)
	}

	nowPlaying = spotify.NewRelay(provider, spotify.RelayOptions{
		NowPlayingURL: cfg.Spotify.NowPlayingURL,
		HTTPClient:    httpClient,
	})
}

// buildHandler chains the middleware around the router. The rate limiter
// sees every request first; the admin key check sits closest to the routes.
func buildHandler(router http.Handler, cfg config.Config) http.Handler {
	protected := middleware.NewAdminGuard(
		cfg.Configuration.AdminAPIKey,
		cfg.Configuration.AdminAPIKeyRequired,
		publicPaths,
	).Middleware(router)

	loggedRouter := middleware.LoggingMiddleware(protected)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Configuration.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.AdminHeader},
		ExposedHeaders: []string{"X-Playback", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
	})
	corsHandler := c.Handler(loggedRouter)

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.Configuration.RateLimitPerSecond), cfg.Configuration.RateLimitBurstLimit)
	return middleware.RateLimitMiddleware(limiter)(corsHandler)
}

// startStatsStore restores persisted counters and saves them periodically.
// It returns nil when persistence is disabled.
func startStatsStore(cfg config.Config) *stats.Store {
	if cfg.Configuration.StatsDBPath == "" {
		return nil
	}

	store, err := stats.NewStore(cfg.Configuration.StatsDBPath, stats.Get())
	if err != nil {
		log.Warnf("%s Failed to open stats store, stats will not persist: %v", logcolors.LogStats, err)
		return nil
	}

	if err := store.Load(); err != nil {
		log.Warnf("%s Failed to load stats: %v", logcolors.LogStats, err)
	}

	if cfg.Configuration.StatsSaveIntervalSeconds > 0 {
		store.StartAutoSave(time.Duration(cfg.Configuration.StatsSaveIntervalSeconds) * time.Second)
	}
	return store
}

// serve runs the relay until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupServices(cfg)

	if cfg.Configuration.AdminAPIKey == "" {
		log.Warnf("%s ADMIN_API_KEY is not set; /stats and /circuit-breaker are open to anyone", logcolors.LogWarning)
	}

	if store := startStatsStore(cfg); store != nil {
		defer store.Close()
	}

	router := mux.NewRouter()
	setupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Configuration.Port,
		Handler:           buildHandler(router, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			log.Infof("%s Using certificate %s", logcolors.LogTLS, cfg.TLS.CertFile)
			log.Infof("%s Server listening on https://localhost:%s", logcolors.LogServer, cfg.Configuration.Port)
			errCh <- srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		log.Infof("%s Server listening on http://localhost:%s", logcolors.LogServer, cfg.Configuration.Port)
		errCh <- srv.ListenAndServe()
	}()

	go alerts.Handle(ctx, notifier.Event{
		Type:     notifier.EventServerStarted,
		Severity: notifier.SeverityInfo,
		Port:     cfg.Configuration.Port,
	})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on port %s: %w", cfg.Configuration.Port, err)
	case <-ctx.Done():
	}

	log.Infof("%s Shutting down", logcolors.LogServer)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
